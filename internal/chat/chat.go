package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/northbound/drive-chat/internal/apperr"
	"github.com/northbound/drive-chat/internal/clients"
	"github.com/northbound/drive-chat/internal/model"
	"github.com/northbound/drive-chat/internal/retrieve"
	"github.com/northbound/drive-chat/internal/storage"
)

const defaultMaxIterations = 3

// Store is the subset of *storage.Store the chat loop needs, narrowed so
// Service can be exercised against a fake in tests.
type Store interface {
	GetFile(ctx context.Context, fileID string) (*storage.File, error)
	GetChunksByFile(ctx context.Context, fileID string) ([]storage.ChunkRow, error)
	LogAudit(ctx context.Context, tenantID string, action storage.AuditAction, resourceID, details string) error
	CreateConversation(ctx context.Context, tenantID, folderID string) (*storage.Conversation, error)
	GetConversation(ctx context.Context, tenantID, conversationID string) (*storage.Conversation, error)
	AppendMessage(ctx context.Context, conversationID string, role storage.MessageRole, content string, citations interface{}) (*storage.Message, error)
}

// Searcher is the subset of *retrieve.Retriever the chat loop needs.
type Searcher interface {
	Search(ctx context.Context, tenantID, folderID, query string, k int) ([]retrieve.Result, error)
}

// Generator is the subset of *clients.GeneratorClient the chat loop needs.
type Generator interface {
	Stream(ctx context.Context, messages []clients.Message, tools []clients.ToolSpec) (<-chan clients.StreamEvent, error)
}

// Service runs Chat operations (spec §6) against a folder's indexed
// documents, in either standard (single retrieval) or agentic (tool-use
// loop) mode.
type Service struct {
	store         Store
	retriever     Searcher
	generator     Generator
	maxIterations int
}

// NewService builds a chat Service. maxIterations bounds the agentic
// tool-use loop and is clamped to [1, 10]; pass 0 to use the default of 3.
func NewService(store Store, retriever Searcher, generator Generator, maxIterations int) *Service {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	if maxIterations > 10 {
		maxIterations = 10
	}
	return &Service{store: store, retriever: retriever, generator: generator, maxIterations: maxIterations}
}

// Run starts one Chat operation and returns a channel of events. The
// channel is closed once a Done or Error event has been sent.
func (s *Service) Run(ctx context.Context, req Request) (<-chan Event, error) {
	if req.Message == "" {
		return nil, fmt.Errorf("chat: empty message: %w", apperr.ErrValidation)
	}

	iterations := req.MaxIterations
	if iterations <= 0 {
		iterations = s.maxIterations
	}
	if iterations > 10 {
		iterations = 10
	}

	c := &Chatter{
		store:            s.store,
		retriever:        s.retriever,
		generator:        s.generator,
		req:              req,
		maxIterations:    iterations,
		citationsByChunk: make(map[string]Citation),
	}

	conv, err := c.resolveConversation(ctx)
	if err != nil {
		return nil, err
	}
	c.conversationID = conv.ID

	events := make(chan Event, 32)
	go func() {
		defer close(events)
		if req.AgentMode {
			c.runAgentic(ctx, events)
		} else {
			c.runStandard(ctx, events)
		}
	}()
	return events, nil
}

// Chatter holds the per-request state of one Run call: the conversation
// it is appending to and the citation map it accumulates as tools and
// retrieval surface chunks.
type Chatter struct {
	store         Store
	retriever     Searcher
	generator     Generator
	req           Request
	maxIterations int

	conversationID   string
	citationsByChunk map[string]Citation
	citationOrder    []string
}

func (c *Chatter) resolveConversation(ctx context.Context) (*storage.Conversation, error) {
	if c.req.ConversationID == "" {
		return c.store.CreateConversation(ctx, c.req.TenantID, c.req.FolderID)
	}
	return c.store.GetConversation(ctx, c.req.TenantID, c.req.ConversationID)
}

func (c *Chatter) runStandard(ctx context.Context, events chan<- Event) {
	events <- statusEvent(PhaseSearching, 1, "")

	var contextBlock string
	var searchedFiles []string
	results, err := c.retriever.Search(ctx, c.req.TenantID, c.req.FolderID, c.req.Message, 10)
	if err == nil && len(results) > 0 {
		contextBlock = c.buildContext(results)
		searchedFiles = fileNames(results)
	}

	messages := []clients.Message{
		{Role: "system", Content: standardSystemPrompt(contextBlock)},
		{Role: "user", Content: c.req.Message},
	}

	events <- statusEvent(PhaseGenerating, 1, "")
	answer, err := c.streamAnswer(ctx, messages, events)
	if err != nil {
		events <- errorEvent("generation_failed", err.Error())
		return
	}

	c.persistTurn(ctx, answer)
	events <- doneEvent(c.citationsSnapshot(), searchedFiles, c.conversationID)
}

func (c *Chatter) runAgentic(ctx context.Context, events chan<- Event) {
	messages := []clients.Message{
		{Role: "system", Content: agenticSystemPrompt()},
		{Role: "user", Content: c.req.Message},
	}

	var searchedFiles []string
	seenFiles := make(map[string]bool)

	for iter := 1; iter <= c.maxIterations; iter++ {
		var tools []clients.ToolSpec
		if iter < c.maxIterations {
			tools = toolSchemas
		}

		streamEvents, err := c.generator.Stream(ctx, messages, tools)
		if err != nil {
			events <- errorEvent("generation_failed", err.Error())
			return
		}

		var toolCalls []*clients.ToolCall
		var turnText strings.Builder
		streamErr := error(nil)
		for evt := range streamEvents {
			switch evt.Kind {
			case clients.StreamEventToken:
				turnText.WriteString(evt.Token)
				events <- tokenEvent(evt.Token)
			case clients.StreamEventToolCall:
				toolCalls = append(toolCalls, evt.ToolCall)
			case clients.StreamEventError:
				streamErr = evt.Err
			}
		}
		if streamErr != nil {
			events <- errorEvent("generation_failed", streamErr.Error())
			return
		}

		if len(toolCalls) == 0 {
			c.persistTurn(ctx, turnText.String())
			events <- doneEvent(c.citationsSnapshot(), searchedFiles, c.conversationID)
			return
		}

		messages = append(messages, clients.Message{Role: "assistant", Content: turnText.String()})

		for _, tc := range toolCalls {
			events <- statusEvent(phaseForTool(tc.Name), iter, tc.Name)

			result, _, files, err := c.dispatchTool(ctx, tc)
			if err != nil {
				result = map[string]string{"error": "invalid arguments"}
			}
			for _, f := range files {
				if !seenFiles[f] {
					seenFiles[f] = true
					searchedFiles = append(searchedFiles, f)
				}
			}

			resultJSON, _ := json.Marshal(result)
			messages = append(messages, clients.Message{Role: "tool", Content: string(resultJSON)})
		}
	}
}

// streamAnswer drains a generator stream of plain token events, emitting
// each as a tokenEvent, and returns the full answer. It never persists a
// partial answer: callers only call persistTurn once this returns nil.
func (c *Chatter) streamAnswer(ctx context.Context, messages []clients.Message, events chan<- Event) (string, error) {
	streamEvents, err := c.generator.Stream(ctx, messages, nil)
	if err != nil {
		return "", err
	}

	var answer strings.Builder
	for evt := range streamEvents {
		switch evt.Kind {
		case clients.StreamEventToken:
			answer.WriteString(evt.Token)
			events <- tokenEvent(evt.Token)
		case clients.StreamEventError:
			return "", evt.Err
		}
	}
	return answer.String(), nil
}

func (c *Chatter) persistTurn(ctx context.Context, answer string) {
	_, _ = c.store.AppendMessage(ctx, c.conversationID, storage.MessageRoleUser, c.req.Message, nil)
	_, _ = c.store.AppendMessage(ctx, c.conversationID, storage.MessageRoleAssistant, answer, c.citationsSnapshot())
}

// buildContext assigns each result a stable citation number and renders
// it into a system-prompt context block the generator is instructed to
// cite back as "[N]".
func (c *Chatter) buildContext(results []retrieve.Result) string {
	for _, r := range results {
		c.recordCitation(r)
	}
	numbers := make(map[string]int, len(c.citationOrder))
	for i, id := range c.citationOrder {
		numbers[id] = i + 1
	}

	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", numbers[r.ChunkID], r.FileName, locationLabel(r.Location), r.Excerpt)
	}
	return b.String()
}

func (c *Chatter) citationsSnapshot() map[string]Citation {
	out := make(map[string]Citation, len(c.citationOrder))
	for i, id := range c.citationOrder {
		out[strconv.Itoa(i+1)] = c.citationsByChunk[id]
	}
	return out
}

func fileNames(results []retrieve.Result) []string {
	seen := make(map[string]bool, len(results))
	var out []string
	for _, r := range results {
		if !seen[r.FileName] {
			seen[r.FileName] = true
			out = append(out, r.FileName)
		}
	}
	return out
}

func phaseForTool(name string) Phase {
	switch name {
	case "search_folder":
		return PhaseSearching
	case "get_file_chunks", "get_file":
		return PhaseReadingFile
	case "rewrite_query":
		return PhaseRewriting
	default:
		return PhaseProcessing
	}
}

func locationLabel(loc model.Location) string {
	switch loc.Type {
	case model.LocationPDF:
		return fmt.Sprintf("page %d", loc.Page)
	case model.LocationDoc:
		if loc.HeadingPath != "" {
			return loc.HeadingPath
		}
		return fmt.Sprintf("paragraph %d", loc.ParaIndex)
	case model.LocationSheet:
		return fmt.Sprintf("%s %s", loc.SheetName, loc.RowRange)
	default:
		return "text"
	}
}

func standardSystemPrompt(contextBlock string) string {
	if contextBlock == "" {
		return "You are a helpful assistant answering questions about the user's documents. " +
			"No relevant document context could be retrieved for this question; say so plainly " +
			"and answer from general knowledge only if you can do so without inventing facts about the user's files."
	}
	return "You are a helpful assistant answering questions about the user's documents. " +
		"Use only the following context to answer, and cite every claim with its bracketed number, e.g. [1]. " +
		"If the context does not contain the answer, say so.\n\n" + contextBlock
}

func agenticSystemPrompt() string {
	return "You are a helpful assistant answering questions about the user's documents. " +
		"Use the search_folder, get_file_chunks, get_file, and rewrite_query tools to find supporting evidence " +
		"before answering. Cite every claim with its bracketed number, e.g. [1], matching the chunks the tools return. " +
		"Once you have enough evidence, answer without calling another tool."
}
