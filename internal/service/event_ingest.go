package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ilumina.app/assistant/internal/model"
	"ilumina.app/assistant/internal/queue"
)

var ErrInvalidStatus = errors.New("unknown analysis status")

// EventIngestParams is one run update as reported by the analysis
// platform. Submission, section and step echo what the execution call
// handed over; the worker resolves the conversation from them.
type EventIngestParams struct {
	SubmissionID string  `json:"submission_id"`
	Section      string  `json:"section"`
	Step         string  `json:"step"`
	Status       string  `json:"status"`
	RunID        *string `json:"run_id,omitempty"`
	Detail       *string `json:"detail,omitempty"`

	TraceID *string `json:"trace_id,omitempty"`
}

type EventIngestResult struct {
	EventType model.AnalysisEventType
	Enqueued  bool
}

type EventIngestService interface {
	Ingest(ctx context.Context, params EventIngestParams) (*EventIngestResult, error)
}

type eventIngestService struct {
	queue  queue.Producer
	logger *slog.Logger
}

func NewEventIngestService(queue queue.Producer, logger *slog.Logger) EventIngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventIngestService{
		queue:  queue,
		logger: logger,
	}
}

// Ingest validates a platform run update and hands it to the stream.
// Raw events are not persisted: the worker's notification message is
// the durable record, and duplicate deliveries just repeat a line of
// prose in the conversation.
func (s *eventIngestService) Ingest(ctx context.Context, params EventIngestParams) (*EventIngestResult, error) {
	if params.SubmissionID == "" || params.Step == "" {
		return nil, fmt.Errorf("submission_id and step are required")
	}

	eventType, err := eventTypeFromStatus(params.Status)
	if err != nil {
		return nil, err
	}

	section := model.ParseSection(params.Section)

	msg := queue.EventMessage{
		SubmissionID: params.SubmissionID,
		Section:      string(section),
		Step:         params.Step,
		EventType:    string(eventType),
		TraceID:      params.TraceID,
		Attempt:      1,
	}
	if params.RunID != nil {
		msg.RunID = *params.RunID
	}
	if params.Detail != nil {
		msg.Detail = *params.Detail
	}

	if err := s.queue.Enqueue(ctx, msg); err != nil {
		return nil, fmt.Errorf("enqueueing event: %w", err)
	}

	s.logger.InfoContext(ctx, "analysis event ingested",
		"submission_id", params.SubmissionID,
		"section", section,
		"step", params.Step,
		"event_type", eventType)

	return &EventIngestResult{
		EventType: eventType,
		Enqueued:  true,
	}, nil
}

func eventTypeFromStatus(status string) (model.AnalysisEventType, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "success", string(model.AnalysisEventCompleted):
		return model.AnalysisEventCompleted, nil
	case "failed", "error", string(model.AnalysisEventFailed):
		return model.AnalysisEventFailed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
}
