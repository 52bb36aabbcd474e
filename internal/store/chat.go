package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatStore persists chat sessions and their messages.
type ChatStore struct {
	db *DB
}

// NewChatStore creates a new chat store.
func NewChatStore(db *DB) *ChatStore {
	return &ChatStore{db: db}
}

// CreateSession creates a session for userID, deriving the title from
// the first message, and returns its id.
func (s *ChatStore) CreateSession(ctx context.Context, userID, firstMessage string) (string, error) {
	id := uuid.NewString()
	title := firstMessage
	if len(title) > 40 {
		title = title[:40] + ".."
	}
	_, err := s.db.sqlDB.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, title, created_at) VALUES (?, ?, ?, ?)`,
		id, userID, title, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// AddMessage appends one turn to a session.
func (s *ChatStore) AddMessage(ctx context.Context, sessionID, role, content string) error {
	_, err := s.db.sqlDB.ExecContext(ctx,
		`INSERT INTO chat_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, role, content, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}
	return nil
}

// SessionsByUser lists a user's sessions, newest first.
func (s *ChatStore) SessionsByUser(ctx context.Context, userID string) ([]ChatSession, error) {
	var sessions []ChatSession
	err := s.db.sqlDB.SelectContext(ctx, &sessions,
		`SELECT * FROM chat_sessions WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// MessagesBySession lists a session's messages in conversation order.
func (s *ChatStore) MessagesBySession(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	var messages []ChatMessage
	err := s.db.sqlDB.SelectContext(ctx, &messages,
		`SELECT * FROM chat_messages WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}
