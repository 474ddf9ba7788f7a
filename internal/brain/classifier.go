package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ilumina.app/assistant/common/llm"
	"ilumina.app/assistant/common/logger"
	"ilumina.app/assistant/internal/model"
)

// transcriptWindow caps how many prior turns are rendered into prompts.
const transcriptWindow = 6

// TurnContext is the lightweight context sent along with each
// classification: which project and section the user is looking at, and
// where the analysis pipeline currently stands.
type TurnContext struct {
	ProjectName string
	Section     model.Section
	CurrentStep model.Step
	History     []model.ChatMessage // oldest-first; only the tail is prompted
}

// TurnClassification bundles the oracle's verdict for one user turn.
// Reply carries the oracle's conversational answer from the same call,
// so a turn costs a single completion.
type TurnClassification struct {
	Classification model.Classification
	Reply          string
	NeedsGuidance  bool
}

// classifierResponse is the JSON shape the oracle is instructed to
// answer with. Enum values mirror the closed classification vocabulary.
type classifierResponse struct {
	Step          model.Step       `json:"step" jsonschema:"required,enum=analyze_actors,enum=analyze_project,enum=analyze_deployment,enum=verify_deployment_script,enum=unknown"`
	Action        model.ActionKind `json:"action" jsonschema:"required,enum=refine,enum=clarify,enum=update,enum=run,enum=needs_followup,enum=unknown"`
	Confidence    float64          `json:"confidence" jsonschema:"required,description=Certainty of the step and action labels between 0 and 1."`
	Explanation   string           `json:"explanation" jsonschema:"required,description=One or two sentences on why this classification fits."`
	IsActionable  bool             `json:"isActionable" jsonschema:"required,description=True when fulfilling the request requires a state change in the analysis."`
	Reply         string           `json:"reply" jsonschema:"required,description=Your conversational reply to the user."`
	NeedsGuidance bool             `json:"needsGuidance" jsonschema:"description=True when you need more direction before anything can be done."`
}

// Classifier turns a free-text user message into a typed intent by
// prompting the language oracle and validating its structured output.
type Classifier struct {
	llm        llm.Client
	maxTokens  int
	schemaJSON string
}

func NewClassifier(client llm.Client, maxTokens int) *Classifier {
	return &Classifier{
		llm:        client,
		maxTokens:  maxTokens,
		schemaJSON: renderSchema(llm.GenerateSchema[classifierResponse]()),
	}
}

// Classify prompts the oracle once and parses the first balanced JSON
// object out of its answer. It never fails the turn: on any oracle or
// parse error it degrades to the safe non-actionable default, leaving
// retries to the caller. The call is idempotent and side-effect-free.
func (c *Classifier) Classify(ctx context.Context, message string, tctx TurnContext) TurnClassification {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "assistant.brain.classifier"})

	start := time.Now()

	resp, err := c.llm.Complete(ctx, llm.Request{
		System:      classifierSystemPrompt,
		Prompt:      c.buildPrompt(message, tctx),
		MaxTokens:   c.maxTokens,
		Temperature: llm.Temp(0),
	})
	if err != nil {
		slog.WarnContext(ctx, "classification call failed, using fallback",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return fallbackTurn("The request could not be classified; treating it as informational.")
	}

	payload, ok := ExtractJSONObject(resp.Text)
	if !ok {
		slog.WarnContext(ctx, "classification response had no JSON object, using fallback",
			"response", logger.Truncate(resp.Text, 300))
		return fallbackTurn("The classifier returned no structured answer; treating the request as informational.")
	}

	var parsed classifierResponse
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		slog.WarnContext(ctx, "classification response unparseable, using fallback",
			"error", err,
			"payload", logger.Truncate(payload, 300))
		return fallbackTurn("The classifier answer was malformed; treating the request as informational.")
	}

	classification := model.Classification{
		Step:         parsed.Step,
		Action:       parsed.Action,
		Confidence:   parsed.Confidence,
		Explanation:  parsed.Explanation,
		IsActionable: parsed.IsActionable,
	}
	classification.Normalize()

	slog.DebugContext(ctx, "message classified",
		"step", classification.Step,
		"action", classification.Action,
		"confidence", classification.Confidence,
		"is_actionable", classification.IsActionable,
		"needs_guidance", parsed.NeedsGuidance,
		"duration_ms", time.Since(start).Milliseconds())

	return TurnClassification{
		Classification: classification,
		Reply:          strings.TrimSpace(parsed.Reply),
		NeedsGuidance:  parsed.NeedsGuidance,
	}
}

func (c *Classifier) buildPrompt(message string, tctx TurnContext) string {
	var b strings.Builder

	b.WriteString("## Context\n")
	if tctx.ProjectName != "" {
		fmt.Fprintf(&b, "Project: %s\n", tctx.ProjectName)
	}
	if tctx.Section != "" {
		fmt.Fprintf(&b, "Dashboard section: %s\n", tctx.Section)
	}
	if tctx.CurrentStep != "" && tctx.CurrentStep != model.StepUnknown {
		fmt.Fprintf(&b, "Current pipeline step: %s\n", tctx.CurrentStep)
	}

	if transcript := formatTranscript(tctx.History, transcriptWindow); transcript != "" {
		b.WriteString("\n## Recent conversation\n")
		b.WriteString(transcript)
	}

	b.WriteString("\n## User message\n")
	b.WriteString(message)

	b.WriteString("\n\n## Response schema\n")
	b.WriteString("Answer with exactly one JSON object matching this schema, nothing else:\n")
	b.WriteString(c.schemaJSON)

	return b.String()
}

func fallbackTurn(explanation string) TurnClassification {
	return TurnClassification{
		Classification: model.FallbackClassification(explanation),
	}
}

// formatTranscript renders the last limit messages as "role: content"
// lines, oldest first. Returns "" for an empty history.
func formatTranscript(msgs []model.ChatMessage, limit int) string {
	if len(msgs) == 0 {
		return ""
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

// renderSchema pretty-prints a reflected schema for prompt embedding.
func renderSchema(schema any) string {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

const classifierSystemPrompt = `You are the assistant behind a smart-contract analysis dashboard. Users chat with you about their project's analysis: actor summaries, project summaries, deployment instructions, implementation notes and validation rules.

Your job on every message is twofold:

1. Classify the request.
   - step: which pipeline stage the request concerns (analyze_actors, analyze_project, analyze_deployment, verify_deployment_script, or unknown).
   - action: what the user wants done. Use "update" or "refine" when they want analysis output changed, "run" when they want an analysis executed, "clarify" when they are asking a question, "needs_followup" when the request is too vague to act on, "unknown" otherwise.
   - isActionable: true only when fulfilling the request would change analysis state. Questions and explanations are never actionable.
   - confidence: how certain you are, 0 to 1. Be honest; low confidence routes the request away from execution.

2. Write the reply the user will read.
   - For questions: answer directly from the context you have. Do not invent analysis results.
   - For actionable requests: restate what you understood they want changed. Do not claim anything has been done; changes only run after the user confirms.
   - Stay concise and concrete. No markdown headings.

Answer with a single JSON object only. No prose before or after it.`
