package core

import (
	"context"
	"testing"
	"time"

	"github.com/northbound/drive-chat/internal/apperr"
	"github.com/northbound/drive-chat/internal/chat"
	"github.com/northbound/drive-chat/internal/storage"
	"github.com/northbound/drive-chat/internal/sync"
)

type fakeStore struct {
	folders       map[string]*storage.Folder
	conversations map[string]*storage.Conversation
	messages      map[string][]*storage.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		folders:       make(map[string]*storage.Folder),
		conversations: make(map[string]*storage.Conversation),
		messages:      make(map[string][]*storage.Message),
	}
}

func (f *fakeStore) RegisterFolder(ctx context.Context, tenantID, driveFolderID, name string) (*storage.Folder, error) {
	folder := &storage.Folder{ID: "folder-" + driveFolderID, TenantID: tenantID, DriveFolderID: driveFolderID, Name: name, Status: storage.FolderStatusPending}
	f.folders[folder.ID] = folder
	return folder, nil
}

func (f *fakeStore) GetFolder(ctx context.Context, tenantID, folderID string) (*storage.Folder, error) {
	folder, ok := f.folders[folderID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return folder, nil
}

func (f *fakeStore) DeleteFolder(ctx context.Context, tenantID, folderID string) error {
	if _, ok := f.folders[folderID]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.folders, folderID)
	return nil
}

func (f *fakeStore) GetConversation(ctx context.Context, tenantID, conversationID string) (*storage.Conversation, error) {
	conv, ok := f.conversations[conversationID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return conv, nil
}

func (f *fakeStore) ListMessages(ctx context.Context, conversationID string) ([]*storage.Message, error) {
	return f.messages[conversationID], nil
}

type fakeSync struct {
	result  sync.Result
	err     error
	calls   int
	waitFor chan struct{}
}

func (f *fakeSync) Sync(ctx context.Context, tenantID, folderID string) (sync.Result, error) {
	f.calls++
	if f.waitFor != nil {
		f.waitFor <- struct{}{}
	}
	return f.result, f.err
}

type fakeChat struct {
	events chan chat.Event
}

func (f *fakeChat) Run(ctx context.Context, req chat.Request) (<-chan chat.Event, error) {
	return f.events, nil
}

func TestRegisterFolder_TriggersBackgroundSync(t *testing.T) {
	store := newFakeStore()
	sy := &fakeSync{waitFor: make(chan struct{}, 1)}
	c := New(store, sy, &fakeChat{})

	folder, err := c.RegisterFolder(context.Background(), "t1", "d1", "My Folder")
	if err != nil {
		t.Fatalf("RegisterFolder: %v", err)
	}
	if folder.Status != storage.FolderStatusPending {
		t.Fatalf("expected a freshly registered folder to start pending, got %s", folder.Status)
	}

	select {
	case <-sy.waitFor:
	case <-time.After(time.Second):
		t.Fatal("expected RegisterFolder to trigger a background sync")
	}
}

func TestGetFolderStatus_ReturnsStoredProgress(t *testing.T) {
	store := newFakeStore()
	store.folders["fo1"] = &storage.Folder{ID: "fo1", TenantID: "t1", Status: storage.FolderStatusReady, FilesTotal: 10, FilesIndexed: 8}
	c := New(store, &fakeSync{}, &fakeChat{})

	status, err := c.GetFolderStatus(context.Background(), "t1", "fo1")
	if err != nil {
		t.Fatalf("GetFolderStatus: %v", err)
	}
	if status.FilesTotal != 10 || status.FilesIndexed != 8 || status.Status != storage.FolderStatusReady {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestDeleteFolder_RemovesFolder(t *testing.T) {
	store := newFakeStore()
	store.folders["fo1"] = &storage.Folder{ID: "fo1", TenantID: "t1"}
	c := New(store, &fakeSync{}, &fakeChat{})

	if err := c.DeleteFolder(context.Background(), "t1", "fo1"); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}
	if _, ok := store.folders["fo1"]; ok {
		t.Fatal("expected folder to be removed")
	}
}

func TestLoadConversation_ReturnsMessagesForOwnedConversation(t *testing.T) {
	store := newFakeStore()
	store.conversations["conv1"] = &storage.Conversation{ID: "conv1", TenantID: "t1"}
	store.messages["conv1"] = []*storage.Message{
		{ID: "m1", ConversationID: "conv1", Role: storage.MessageRoleUser, Content: "hi"},
	}
	c := New(store, &fakeSync{}, &fakeChat{})

	messages, err := c.LoadConversation(context.Background(), "t1", "conv1")
	if err != nil {
		t.Fatalf("LoadConversation: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "hi" {
		t.Fatalf("unexpected messages: %+v", messages)
	}
}

func TestLoadConversation_RejectsUnknownConversation(t *testing.T) {
	c := New(newFakeStore(), &fakeSync{}, &fakeChat{})
	_, err := c.LoadConversation(context.Background(), "t1", "missing")
	if err == nil {
		t.Fatal("expected an error for an unknown conversation")
	}
}

func TestChat_DelegatesToChatService(t *testing.T) {
	events := make(chan chat.Event, 1)
	events <- chat.Event{Kind: chat.EventDone}
	close(events)
	c := New(newFakeStore(), &fakeSync{}, &fakeChat{events: events})

	stream, err := c.Chat(context.Background(), chat.Request{TenantID: "t1", FolderID: "fo1", Message: "hello"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	var count int
	for range stream {
		count++
	}
	if count != 1 {
		t.Fatalf("expected the fake chat service's single event to pass through, got %d", count)
	}
}
