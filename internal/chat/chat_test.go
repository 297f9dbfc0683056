package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/northbound/drive-chat/internal/apperr"
	"github.com/northbound/drive-chat/internal/clients"
	"github.com/northbound/drive-chat/internal/model"
	"github.com/northbound/drive-chat/internal/retrieve"
	"github.com/northbound/drive-chat/internal/storage"
)

type fakeStore struct {
	files         map[string]*storage.File
	conversations map[string]*storage.Conversation
	messages      []*storage.Message
	auditLogs     []storage.AuditAction
	nextConvID    string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		files:         make(map[string]*storage.File),
		conversations: make(map[string]*storage.Conversation),
		nextConvID:    "conv-1",
	}
}

func (f *fakeStore) GetFile(ctx context.Context, fileID string) (*storage.File, error) {
	file, ok := f.files[fileID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return file, nil
}

func (f *fakeStore) GetChunksByFile(ctx context.Context, fileID string) ([]storage.ChunkRow, error) {
	return []storage.ChunkRow{{ID: "chunk-1", FileID: fileID, Text: "chunk text"}}, nil
}

func (f *fakeStore) LogAudit(ctx context.Context, tenantID string, action storage.AuditAction, resourceID, details string) error {
	f.auditLogs = append(f.auditLogs, action)
	return nil
}

func (f *fakeStore) CreateConversation(ctx context.Context, tenantID, folderID string) (*storage.Conversation, error) {
	c := &storage.Conversation{ID: f.nextConvID, TenantID: tenantID, FolderID: folderID}
	f.conversations[c.ID] = c
	return c, nil
}

func (f *fakeStore) GetConversation(ctx context.Context, tenantID, conversationID string) (*storage.Conversation, error) {
	c, ok := f.conversations[conversationID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, conversationID string, role storage.MessageRole, content string, citations interface{}) (*storage.Message, error) {
	m := &storage.Message{ConversationID: conversationID, Role: role, Content: content}
	f.messages = append(f.messages, m)
	return m, nil
}

type fakeSearcher struct {
	results []retrieve.Result
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, tenantID, folderID, query string, k int) ([]retrieve.Result, error) {
	return f.results, f.err
}

type fakeGenerator struct {
	turns [][]clients.StreamEvent
	calls int
}

func (f *fakeGenerator) Stream(ctx context.Context, messages []clients.Message, tools []clients.ToolSpec) (<-chan clients.StreamEvent, error) {
	idx := f.calls
	f.calls++
	ch := make(chan clients.StreamEvent, 16)
	go func() {
		defer close(ch)
		if idx >= len(f.turns) {
			return
		}
		for _, evt := range f.turns[idx] {
			ch <- evt
		}
	}()
	return ch, nil
}

func tokens(text string) []clients.StreamEvent {
	return []clients.StreamEvent{{Kind: clients.StreamEventToken, Token: text}, {Kind: clients.StreamEventDone}}
}

func TestRun_StandardMode_StreamsTokensAndCites(t *testing.T) {
	store := newFakeStore()
	searcher := &fakeSearcher{results: []retrieve.Result{
		{ChunkID: "c1", FileID: "f1", FileName: "report.pdf", Excerpt: "Q4 revenue was $5M", Location: model.Location{Type: model.LocationPDF, Page: 3}},
	}}
	gen := &fakeGenerator{turns: [][]clients.StreamEvent{tokens("Revenue was $5M [1].")}}

	svc := NewService(store, searcher, gen, 3)
	events, err := svc.Run(context.Background(), Request{TenantID: "t1", FolderID: "fo1", Message: "what was revenue?"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var tokenText string
	var done *Event
	for evt := range events {
		switch evt.Kind {
		case EventToken:
			tokenText += evt.Token
		case EventDone:
			e := evt
			done = &e
		case EventError:
			t.Fatalf("unexpected error event: %+v", evt.Error)
		}
	}

	if tokenText != "Revenue was $5M [1]." {
		t.Fatalf("unexpected streamed text: %q", tokenText)
	}
	if done == nil {
		t.Fatal("expected a done event")
	}
	if len(done.Done.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d: %+v", len(done.Done.Citations), done.Done.Citations)
	}
	if done.Done.Citations["1"].FileName != "report.pdf" {
		t.Fatalf("expected citation 1 to reference report.pdf, got %+v", done.Done.Citations["1"])
	}
	if len(store.messages) != 2 {
		t.Fatalf("expected user+assistant messages persisted, got %d", len(store.messages))
	}
}

func TestRun_StandardMode_DegradesOnRetrievalFailure(t *testing.T) {
	store := newFakeStore()
	searcher := &fakeSearcher{err: context.DeadlineExceeded}
	gen := &fakeGenerator{turns: [][]clients.StreamEvent{tokens("I couldn't find anything specific, but generally...")}}

	svc := NewService(store, searcher, gen, 3)
	events, err := svc.Run(context.Background(), Request{TenantID: "t1", FolderID: "fo1", Message: "hello"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	sawDone := false
	for evt := range events {
		if evt.Kind == EventError {
			t.Fatalf("retrieval failure should degrade, not error: %+v", evt.Error)
		}
		if evt.Kind == EventDone {
			sawDone = true
			if len(evt.Done.Citations) != 0 {
				t.Fatalf("expected no citations when retrieval failed, got %+v", evt.Done.Citations)
			}
		}
	}
	if !sawDone {
		t.Fatal("expected a done event")
	}
}

func TestRun_EmptyMessage_ReturnsValidationError(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeSearcher{}, &fakeGenerator{}, 3)
	_, err := svc.Run(context.Background(), Request{TenantID: "t1", FolderID: "fo1"})
	if err == nil {
		t.Fatal("expected an error for an empty message")
	}
}

func TestRun_AgenticMode_DispatchesToolThenAnswers(t *testing.T) {
	store := newFakeStore()
	searcher := &fakeSearcher{results: []retrieve.Result{
		{ChunkID: "c1", FileID: "f1", FileName: "plan.docx", Excerpt: "headcount plan", Location: model.Location{Type: model.LocationDoc, HeadingPath: "Budget"}},
	}}
	gen := &fakeGenerator{turns: [][]clients.StreamEvent{
		{
			{Kind: clients.StreamEventToolCall, ToolCall: &clients.ToolCall{Name: "search_folder", Arguments: []byte(`{"query":"headcount"}`)}},
			{Kind: clients.StreamEventDone},
		},
		tokens("Headcount is growing [1]."),
	}}

	svc := NewService(store, searcher, gen, 3)
	events, err := svc.Run(context.Background(), Request{TenantID: "t1", FolderID: "fo1", Message: "how is headcount trending?", AgentMode: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var sawSearchingStatus bool
	var done *Event
	for evt := range events {
		if evt.Kind == EventStatus && evt.Status.Phase == PhaseSearching {
			sawSearchingStatus = true
		}
		if evt.Kind == EventDone {
			e := evt
			done = &e
		}
		if evt.Kind == EventError {
			t.Fatalf("unexpected error: %+v", evt.Error)
		}
	}

	if !sawSearchingStatus {
		t.Fatal("expected a searching status event for the search_folder tool call")
	}
	if done == nil {
		t.Fatal("expected a done event")
	}
	if len(done.Done.SearchedFiles) != 1 || done.Done.SearchedFiles[0] != "plan.docx" {
		t.Fatalf("expected searched files to include plan.docx, got %+v", done.Done.SearchedFiles)
	}
}

func TestAuthorizeFile_RejectsMalformedID(t *testing.T) {
	c := &Chatter{store: newFakeStore(), req: Request{TenantID: "t1", FolderID: "fo1"}}
	_, err := c.authorizeFile(context.Background(), "not-a-uuid")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected ErrValidation for a malformed id, got %v", err)
	}
}

func TestAuthorizeFile_RejectsCrossFolderFile(t *testing.T) {
	store := newFakeStore()
	fileID := "11111111-1111-1111-1111-111111111111"
	store.files[fileID] = &storage.File{ID: fileID, FolderID: "other-folder", TenantID: "t1", Name: "secret.pdf"}

	c := &Chatter{store: store, req: Request{TenantID: "t1", FolderID: "fo1"}}
	_, err := c.authorizeFile(context.Background(), fileID)
	if !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for a cross-folder file, got %v", err)
	}
}

func TestAuthorizeFile_AllowsOwnedFile(t *testing.T) {
	store := newFakeStore()
	fileID := "11111111-1111-1111-1111-111111111111"
	store.files[fileID] = &storage.File{ID: fileID, FolderID: "fo1", TenantID: "t1", Name: "plan.docx"}

	c := &Chatter{store: store, req: Request{TenantID: "t1", FolderID: "fo1"}}
	info, err := c.authorizeFile(context.Background(), fileID)
	if err != nil {
		t.Fatalf("authorizeFile: %v", err)
	}
	if info.Name != "plan.docx" {
		t.Fatalf("unexpected file info: %+v", info)
	}
}

func TestPhaseForTool(t *testing.T) {
	cases := map[string]Phase{
		"search_folder":   PhaseSearching,
		"get_file_chunks": PhaseReadingFile,
		"get_file":        PhaseReadingFile,
		"rewrite_query":   PhaseRewriting,
		"unknown_tool":    PhaseProcessing,
	}
	for name, want := range cases {
		if got := phaseForTool(name); got != want {
			t.Errorf("phaseForTool(%q) = %q, want %q", name, got, want)
		}
	}
}
