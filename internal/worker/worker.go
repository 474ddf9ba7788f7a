package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"ilumina.app/assistant/common/logger"
	"ilumina.app/assistant/internal/model"
	"ilumina.app/assistant/internal/queue"
)

// Notifier mirrors service.NotificationService - defined here to keep
// the worker decoupled from the service package.
type Notifier interface {
	NotifyRunUpdate(ctx context.Context, event model.AnalysisEvent) (*model.ChatMessage, error)
}

type Config struct {
	MaxAttempts int
}

type Worker struct {
	consumer *queue.RedisConsumer
	notifier Notifier
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer *queue.RedisConsumer, notifier Notifier, cfg Config) *Worker {
	return &Worker{
		consumer:  consumer,
		notifier:  notifier,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"submission_id", msg.SubmissionID)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"submission_id", msg.SubmissionID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage turns one analysis event into a conversation
// notification. Exported so it can be reused by the reclaimer.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_event",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		StreamMessageID: logger.Ptr(msg.ID),
		SubmissionID:    logger.Ptr(msg.SubmissionID),
		EventType:       logger.Ptr(msg.EventType),
		Component:       "assistant.worker",
	})

	slog.InfoContext(ctx, "processing message", "attempt", msg.Attempt)

	event, err := eventFromMessage(msg)
	if err != nil {
		sc.RecordError(err)
		return err
	}

	start := time.Now()
	notification, err := w.notifier.NotifyRunUpdate(ctx, event)
	if err != nil {
		sc.RecordError(err)
		return fmt.Errorf("notifying run update: %w", err)
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The notification is already persisted. A redelivery repeats a
		// line of prose in the conversation, which is acceptable.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}

	slog.InfoContext(ctx, "analysis event processed",
		"message_row_id", notification.ID,
		"conversation_id", notification.ConversationID,
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"submission_id", msg.SubmissionID,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"submission_id", msg.SubmissionID,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}

func eventFromMessage(msg queue.Message) (model.AnalysisEvent, error) {
	eventType := model.AnalysisEventType(strings.ToLower(strings.TrimSpace(msg.EventType)))
	switch eventType {
	case model.AnalysisEventCompleted, model.AnalysisEventFailed:
	default:
		return model.AnalysisEvent{}, fmt.Errorf("unknown event type %q", msg.EventType)
	}

	return model.AnalysisEvent{
		SubmissionID: msg.SubmissionID,
		Section:      model.ParseSection(msg.Section),
		Step:         model.Step(strings.ToLower(strings.TrimSpace(msg.Step))),
		Type:         eventType,
		RunID:        msg.RunID,
		Detail:       msg.Detail,
	}, nil
}
