package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// EventMessage is one analysis-run update headed for the worker. Fields
// mirror the stream entry; Attempt counts deliveries for retry/DLQ
// bookkeeping.
type EventMessage struct {
	SubmissionID string
	Section      string
	Step         string
	EventType    string
	RunID        string
	Detail       string
	TraceID      *string
	Attempt      int
}

type Producer interface {
	Enqueue(ctx context.Context, msg EventMessage) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, msg EventMessage) error {
	attempt := msg.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	fields := map[string]any{
		"submission_id": msg.SubmissionID,
		"section":       msg.Section,
		"step":          msg.Step,
		"event_type":    msg.EventType,
		"attempt":       attempt,
	}

	if msg.RunID != "" {
		fields["run_id"] = msg.RunID
	}
	if msg.Detail != "" {
		fields["detail"] = msg.Detail
	}
	if msg.TraceID != nil && *msg.TraceID != "" {
		fields["trace_id"] = *msg.TraceID
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue event: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued analysis event", "submission_id", msg.SubmissionID, "section", msg.Section, "event_type", msg.EventType, "attempt", attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
