package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/northbound/drive-chat/internal/apperr"
)

// CreateConversation starts a new conversation scoped to a folder.
func (s *Store) CreateConversation(ctx context.Context, tenantID, folderID string) (*Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (folder_id, tenant_id) VALUES ($1, $2)
		RETURNING id, folder_id, tenant_id, created_at
	`, folderID, tenantID)

	var c Conversation
	if err := row.Scan(&c.ID, &c.FolderID, &c.TenantID, &c.CreatedAt); err != nil {
		return nil, fmt.Errorf("storage: create conversation: %w", err)
	}
	return &c, nil
}

// GetConversation fetches a conversation scoped to tenantID.
func (s *Store) GetConversation(ctx context.Context, tenantID, conversationID string) (*Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, folder_id, tenant_id, created_at FROM conversations
		WHERE id = $1 AND tenant_id = $2
	`, conversationID, tenantID)

	var c Conversation
	if err := row.Scan(&c.ID, &c.FolderID, &c.TenantID, &c.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("storage: conversation %s: %w", conversationID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: get conversation: %w", err)
	}
	return &c, nil
}

// AppendMessage records one turn of a conversation. citations may be nil
// for user turns.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, role MessageRole, content string, citations interface{}) (*Message, error) {
	var citationsJSON []byte
	if citations != nil {
		var err error
		citationsJSON, err = json.Marshal(citations)
		if err != nil {
			return nil, fmt.Errorf("storage: marshal citations: %w", err)
		}
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, role, content, citations)
		VALUES ($1, $2, $3, $4)
		RETURNING id, conversation_id, role, content, citations, created_at
	`, conversationID, role, content, citationsJSON)

	var m Message
	if err := row.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Citations, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("storage: append message: %w", err)
	}
	return &m, nil
}

// ListMessages returns a conversation's messages in chronological order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, role, content, citations, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("storage: list messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Citations, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
