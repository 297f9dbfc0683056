// Package core wires the storage, synchronizer, and chat components into
// the typed operations spec.md §6 exposes to the outer system: register,
// sync, and delete a folder, inspect its status, chat against it, and
// replay a past conversation. Transport (HTTP, gRPC, a CLI) is the outer
// system's concern; this package never imports net/http.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/northbound/drive-chat/internal/chat"
	"github.com/northbound/drive-chat/internal/logger"
	"github.com/northbound/drive-chat/internal/storage"
	"github.com/northbound/drive-chat/internal/sync"
)

// Store is the subset of *storage.Store Core needs.
type Store interface {
	RegisterFolder(ctx context.Context, tenantID, driveFolderID, name string) (*storage.Folder, error)
	GetFolder(ctx context.Context, tenantID, folderID string) (*storage.Folder, error)
	DeleteFolder(ctx context.Context, tenantID, folderID string) error
	GetConversation(ctx context.Context, tenantID, conversationID string) (*storage.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]*storage.Message, error)
}

// Synchronizer is the subset of *sync.Synchronizer Core needs.
type Synchronizer interface {
	Sync(ctx context.Context, tenantID, folderID string) (sync.Result, error)
}

// Chatter is the subset of *chat.Service Core needs.
type Chatter interface {
	Run(ctx context.Context, req chat.Request) (<-chan chat.Event, error)
}

// Core composes the indexing and retrieval components into the inbound
// operations the outer system drives.
type Core struct {
	store Store
	sync  Synchronizer
	chat  Chatter
}

// New builds a Core over an already-constructed storage, synchronizer,
// and chat service.
func New(store Store, synchronizer Synchronizer, chatService Chatter) *Core {
	return &Core{store: store, sync: synchronizer, chat: chatService}
}

// RegisterFolder records a new folder for tenantID and kicks off its
// first sync in the background so the caller gets an immediate response
// (spec §6: "triggers first sync") without waiting on a full drive
// listing.
func (c *Core) RegisterFolder(ctx context.Context, tenantID, driveFolderID, name string) (*storage.Folder, error) {
	folder, err := c.store.RegisterFolder(ctx, tenantID, driveFolderID, name)
	if err != nil {
		return nil, fmt.Errorf("core: register folder: %w", err)
	}

	go func() {
		bgCtx := context.Background()
		if _, err := c.sync.Sync(bgCtx, tenantID, folder.ID); err != nil {
			logger.Errorf("core: initial sync for folder %s failed: %v", folder.ID, err)
		}
	}()

	return folder, nil
}

// SyncFolder runs a synchronous reconciliation pass and returns its
// added/modified/deleted counts.
func (c *Core) SyncFolder(ctx context.Context, tenantID, folderID string) (sync.Result, error) {
	result, err := c.sync.Sync(ctx, tenantID, folderID)
	if err != nil {
		return result, fmt.Errorf("core: sync folder: %w", err)
	}
	return result, nil
}

// FolderStatusView is the Get folder status operation's output (spec §6).
type FolderStatusView struct {
	Status       storage.FolderStatus
	FilesTotal   int
	FilesIndexed int
	LastSyncedAt *time.Time
}

// GetFolderStatus reports a folder's current sync/index progress.
func (c *Core) GetFolderStatus(ctx context.Context, tenantID, folderID string) (FolderStatusView, error) {
	folder, err := c.store.GetFolder(ctx, tenantID, folderID)
	if err != nil {
		return FolderStatusView{}, fmt.Errorf("core: folder status: %w", err)
	}
	return FolderStatusView{
		Status:       folder.Status,
		FilesTotal:   folder.FilesTotal,
		FilesIndexed: folder.FilesIndexed,
		LastSyncedAt: folder.LastSyncedAt,
	}, nil
}

// DeleteFolder removes a folder and, via the storage layer's cascade,
// every file, chunk, job, conversation, and message scoped to it.
func (c *Core) DeleteFolder(ctx context.Context, tenantID, folderID string) error {
	if err := c.store.DeleteFolder(ctx, tenantID, folderID); err != nil {
		return fmt.Errorf("core: delete folder: %w", err)
	}
	return nil
}

// Chat runs one chat turn (standard or agentic, per req.AgentMode) and
// returns its event stream.
func (c *Core) Chat(ctx context.Context, req chat.Request) (<-chan chat.Event, error) {
	events, err := c.chat.Run(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("core: chat: %w", err)
	}
	return events, nil
}

// LoadConversation returns a conversation's messages in chronological
// order, scoped to tenantID so one tenant cannot read another's history.
func (c *Core) LoadConversation(ctx context.Context, tenantID, conversationID string) ([]*storage.Message, error) {
	if _, err := c.store.GetConversation(ctx, tenantID, conversationID); err != nil {
		return nil, fmt.Errorf("core: load conversation: %w", err)
	}
	messages, err := c.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("core: load conversation: %w", err)
	}
	return messages, nil
}
