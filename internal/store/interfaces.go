package store

import (
	"context"
	"errors"

	"ilumina.app/assistant/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ConversationStore defines the contract for conversation data access
type ConversationStore interface {
	GetByID(ctx context.Context, id int64) (*model.Conversation, error)
	// GetLatest returns the newest conversation for a (submission, section)
	// pair, which the dashboard treats as the open thread.
	GetLatest(ctx context.Context, submissionID string, section model.Section) (*model.Conversation, error)
	Create(ctx context.Context, conv *model.Conversation) error
	ListBySubmission(ctx context.Context, submissionID string) ([]model.Conversation, error)
}

// MessageStore defines the contract for chat message data access.
// Messages are append-only: there are no update or delete operations.
// Atomic multi-row appends go through a transaction-bound Stores built
// by the service layer's TxRunner.
type MessageStore interface {
	Append(ctx context.Context, msg *model.ChatMessage) error
	// ListByConversation returns messages oldest-first, the order used for
	// prompting and gate decisions.
	ListByConversation(ctx context.Context, conversationID int64) ([]model.ChatMessage, error)
	// ListByConversationDesc returns messages newest-first for display.
	ListByConversationDesc(ctx context.Context, conversationID int64, limit int32) ([]model.ChatMessage, error)
}
