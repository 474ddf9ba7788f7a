package service

import (
	"context"
	"fmt"
	"log/slog"

	"ilumina.app/assistant/common/id"
	"ilumina.app/assistant/common/logger"
	"ilumina.app/assistant/internal/model"
)

// NotificationService posts analysis-run updates into conversations.
// It runs on the worker, outside any chat turn: the message it appends
// carries no classification and never touches pending confirmations.
type NotificationService interface {
	NotifyRunUpdate(ctx context.Context, event model.AnalysisEvent) (*model.ChatMessage, error)
}

type notificationService struct {
	sessions SessionService
}

func NewNotificationService(sessions SessionService) NotificationService {
	return &notificationService{sessions: sessions}
}

// NotifyRunUpdate appends an assistant notification to the submission's
// current conversation for the event's section, creating the
// conversation if the user has never opened that chat surface.
func (s *notificationService) NotifyRunUpdate(ctx context.Context, event model.AnalysisEvent) (*model.ChatMessage, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		SubmissionID: logger.Ptr(event.SubmissionID),
		Section:      logger.Ptr(string(event.Section)),
		EventType:    logger.Ptr(string(event.Type)),
		Component:    "assistant.service.notifier",
	})

	conv, err := s.sessions.Resolve(ctx, event.SubmissionID, event.Section, nil)
	if err != nil {
		return nil, fmt.Errorf("resolving conversation: %w", err)
	}

	msg := &model.ChatMessage{
		ID:             id.New(),
		ConversationID: conv.ID,
		Role:           model.RoleAssistant,
		Content:        notificationText(event),
	}

	if err := s.sessions.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("appending notification: %w", err)
	}

	slog.InfoContext(ctx, "run update posted to conversation",
		"conversation_id", conv.ID,
		"step", event.Step,
		"run_id", event.RunID)

	return msg, nil
}

func notificationText(event model.AnalysisEvent) string {
	step := describeStep(event.Step)

	if event.Type == model.AnalysisEventFailed {
		if event.Detail != "" {
			return fmt.Sprintf("✦ Heads up: %s failed (%s). You can tell me to run it again.", step, event.Detail)
		}
		return fmt.Sprintf("✦ Heads up: %s failed. You can tell me to run it again.", step)
	}

	return fmt.Sprintf("✦ Good news: %s has finished. Ask me about the results, or tell me what to refine.", step)
}
