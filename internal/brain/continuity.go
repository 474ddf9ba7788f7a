package brain

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"ilumina.app/assistant/common/llm"
	"ilumina.app/assistant/common/logger"
	"ilumina.app/assistant/internal/model"
)

type continuityResponse struct {
	Type        model.ContinuityType `json:"type" jsonschema:"required,enum=continue_conversation,enum=new_conversation"`
	Confidence  float64              `json:"confidence" jsonschema:"required,description=Certainty of the judgement between 0 and 1."`
	Explanation string               `json:"explanation" jsonschema:"required,description=One sentence on the topical relationship."`
}

// ContinuityClassifier judges whether a new message continues the open
// thread or switches topic and deserves a fresh conversation.
type ContinuityClassifier struct {
	llm        llm.Client
	schemaJSON string
}

func NewContinuityClassifier(client llm.Client) *ContinuityClassifier {
	return &ContinuityClassifier{
		llm:        client,
		schemaJSON: renderSchema(llm.GenerateSchema[continuityResponse]()),
	}
}

// Classify short-circuits on an empty history: the first message of a
// thread is trivially a new conversation and costs no oracle call. On
// any oracle or parse failure it defaults to continue_conversation at
// confidence 0.5 - preserving context beats silently fragmenting a thread.
func (c *ContinuityClassifier) Classify(ctx context.Context, newMessage string, prior []model.ChatMessage) model.ContinuityResult {
	if len(prior) == 0 {
		return model.ContinuityResult{
			Type:        model.ContinuityNewConversation,
			Confidence:  1,
			Explanation: "No prior messages in this thread.",
		}
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "assistant.brain.continuity"})

	resp, err := c.llm.Complete(ctx, llm.Request{
		System:      continuitySystemPrompt,
		Prompt:      c.buildPrompt(newMessage, prior),
		MaxTokens:   256,
		Temperature: llm.Temp(0),
	})
	if err != nil {
		slog.WarnContext(ctx, "continuity call failed, assuming continuation", "error", err)
		return continuityFallback()
	}

	payload, ok := ExtractJSONObject(resp.Text)
	if !ok {
		slog.WarnContext(ctx, "continuity response had no JSON object, assuming continuation",
			"response", logger.Truncate(resp.Text, 300))
		return continuityFallback()
	}

	var parsed continuityResponse
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		slog.WarnContext(ctx, "continuity response unparseable, assuming continuation", "error", err)
		return continuityFallback()
	}

	result := model.ContinuityResult{
		Type:        parsed.Type,
		Confidence:  parsed.Confidence,
		Explanation: parsed.Explanation,
	}
	if result.Type != model.ContinuityNewConversation && result.Type != model.ContinuityContinueConversation {
		return continuityFallback()
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	} else if result.Confidence > 1 {
		result.Confidence = 1
	}

	slog.DebugContext(ctx, "continuity judged",
		"type", result.Type,
		"confidence", result.Confidence)

	return result
}

func (c *ContinuityClassifier) buildPrompt(newMessage string, prior []model.ChatMessage) string {
	var b strings.Builder

	b.WriteString("## Conversation so far\n")
	b.WriteString(formatTranscript(prior, 0))

	b.WriteString("\n## New message\n")
	b.WriteString(newMessage)

	b.WriteString("\n\n## Response schema\n")
	b.WriteString("Answer with exactly one JSON object matching this schema, nothing else:\n")
	b.WriteString(c.schemaJSON)

	return b.String()
}

func continuityFallback() model.ContinuityResult {
	return model.ContinuityResult{
		Type:        model.ContinuityContinueConversation,
		Confidence:  0.5,
		Explanation: "Continuity could not be judged; keeping the current thread.",
	}
}

const continuitySystemPrompt = `You judge conversational continuity for a smart-contract analysis assistant.

Given the transcript of an open thread and a new user message, decide whether the new message continues the same topic (continue_conversation) or starts something unrelated (new_conversation).

Follow-ups, refinements, confirmations, cancellations and questions about the same analysis area all continue the thread. Only a clear topic change - a different analysis area or something unrelated to the project - starts a new conversation.

Answer with a single JSON object only. No prose before or after it.`
