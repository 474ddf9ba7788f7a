package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ilumina.app/assistant/common/id"
	"ilumina.app/assistant/internal/model"
	"ilumina.app/assistant/internal/store"
)

// SessionService owns conversation identity and message history. The
// message list is append-only and no other component writes to it.
type SessionService interface {
	// Resolve returns the conversation a turn belongs to. An explicit id
	// wins when it exists and belongs to the submission; otherwise the
	// newest conversation for (submission, section) is reused, and a
	// fresh one is created when none exists.
	Resolve(ctx context.Context, submissionID string, section model.Section, explicitID *int64) (*model.Conversation, error)

	// StartNew always creates a fresh conversation, leaving prior
	// threads and their history untouched.
	StartNew(ctx context.Context, submissionID string, section model.Section) (*model.Conversation, error)

	// History returns all messages oldest-first for prompting and gating.
	History(ctx context.Context, conversationID int64) ([]model.ChatMessage, error)

	// HistoryDesc returns the newest messages first for display.
	HistoryDesc(ctx context.Context, conversationID int64, limit int32) ([]model.ChatMessage, error)

	// AppendTurn persists a turn's user and assistant messages in one
	// transaction: a failed turn never leaves a half-written pair.
	AppendTurn(ctx context.Context, userMsg, assistantMsg *model.ChatMessage) error

	// Append persists a single message outside a turn, e.g. an analysis
	// completion notification.
	Append(ctx context.Context, msg *model.ChatMessage) error

	ListBySubmission(ctx context.Context, submissionID string) ([]model.Conversation, error)

	Get(ctx context.Context, conversationID int64) (*model.Conversation, error)
}

type sessionService struct {
	stores   *store.Stores
	txRunner TxRunner
}

func NewSessionService(stores *store.Stores, txRunner TxRunner) SessionService {
	return &sessionService{
		stores:   stores,
		txRunner: txRunner,
	}
}

func (s *sessionService) Resolve(ctx context.Context, submissionID string, section model.Section, explicitID *int64) (*model.Conversation, error) {
	if explicitID != nil {
		conv, err := s.stores.Conversation.GetByID(ctx, *explicitID)
		switch {
		case err == nil && conv.SubmissionID == submissionID:
			return conv, nil
		case err == nil:
			// Conversation ids are not guessable, but never serve one
			// submission's thread to another.
			slog.WarnContext(ctx, "conversation belongs to a different submission, starting fresh",
				"conversation_id", *explicitID,
				"submission_id", submissionID)
		case errors.Is(err, store.ErrNotFound):
			slog.WarnContext(ctx, "explicit conversation id not found, starting fresh",
				"conversation_id", *explicitID)
		default:
			return nil, fmt.Errorf("resolving conversation %d: %w", *explicitID, err)
		}
		return s.StartNew(ctx, submissionID, section)
	}

	conv, err := s.stores.Conversation.GetLatest(ctx, submissionID, section)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("resolving latest conversation: %w", err)
	}

	return s.StartNew(ctx, submissionID, section)
}

func (s *sessionService) StartNew(ctx context.Context, submissionID string, section model.Section) (*model.Conversation, error) {
	conv := &model.Conversation{
		ID:           id.New(),
		SubmissionID: submissionID,
		Section:      section,
	}

	if err := s.stores.Conversation.Create(ctx, conv); err != nil {
		slog.ErrorContext(ctx, "failed to create conversation",
			"error", err,
			"submission_id", submissionID,
			"section", section)
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	slog.InfoContext(ctx, "conversation created",
		"conversation_id", conv.ID,
		"submission_id", submissionID,
		"section", section)
	return conv, nil
}

func (s *sessionService) History(ctx context.Context, conversationID int64) ([]model.ChatMessage, error) {
	return s.stores.Message.ListByConversation(ctx, conversationID)
}

func (s *sessionService) HistoryDesc(ctx context.Context, conversationID int64, limit int32) ([]model.ChatMessage, error) {
	return s.stores.Message.ListByConversationDesc(ctx, conversationID, limit)
}

func (s *sessionService) AppendTurn(ctx context.Context, userMsg, assistantMsg *model.ChatMessage) error {
	return s.txRunner.WithTx(ctx, func(stores *store.Stores) error {
		if err := stores.Message.Append(ctx, userMsg); err != nil {
			return fmt.Errorf("appending user message: %w", err)
		}
		if err := stores.Message.Append(ctx, assistantMsg); err != nil {
			return fmt.Errorf("appending assistant message: %w", err)
		}
		return nil
	})
}

func (s *sessionService) Append(ctx context.Context, msg *model.ChatMessage) error {
	return s.stores.Message.Append(ctx, msg)
}

func (s *sessionService) ListBySubmission(ctx context.Context, submissionID string) ([]model.Conversation, error) {
	return s.stores.Conversation.ListBySubmission(ctx, submissionID)
}

func (s *sessionService) Get(ctx context.Context, conversationID int64) (*model.Conversation, error) {
	return s.stores.Conversation.GetByID(ctx, conversationID)
}
