package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, enabling zero-touch logging where business
// context (submission_id, conversation_id, etc.) is automatically included in all log statements.
type LogFields struct {
	SubmissionID    *string // Submission the conversation belongs to
	ConversationID  *int64  // Conversation thread ID
	Section         *string // Chat surface section (e.g., "actor_summary")
	StreamMessageID *string // Redis stream message ID
	EventType       *string // Analysis event type (e.g., "run_completed")
	Component       string  // Component name (OTel semantic convention style, e.g., "assistant.brain.engine")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'new'.
func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.SubmissionID != nil {
		result.SubmissionID = new.SubmissionID
	}
	if new.ConversationID != nil {
		result.ConversationID = new.ConversationID
	}
	if new.Section != nil {
		result.Section = new.Section
	}
	if new.StreamMessageID != nil {
		result.StreamMessageID = new.StreamMessageID
	}
	if new.EventType != nil {
		result.EventType = new.EventType
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{ConversationID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like prompts or oracle replies.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
