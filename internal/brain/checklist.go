package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ilumina.app/assistant/common/llm"
	"ilumina.app/assistant/common/logger"
	"ilumina.app/assistant/internal/model"
)

// localChecklistDepth is how many trailing user turns feed the locally
// constructed fallback checklist.
const localChecklistDepth = 3

// Summarizer condenses everything the user has asked for across a
// thread into a confirmation checklist.
type Summarizer struct {
	llm       llm.Client
	maxTokens int
}

func NewSummarizer(client llm.Client, maxTokens int) *Summarizer {
	return &Summarizer{llm: client, maxTokens: maxTokens}
}

// Summarize builds the approval checklist for a thread. msgs must
// include the current user turn. The oracle is asked first; when its
// output fails checklist validation (title sentinel plus at least one
// bullet), a checklist is assembled locally from the first clause of
// each recent user message. The result is therefore always usable.
// Pure relative to its inputs: no state is touched.
func (s *Summarizer) Summarize(ctx context.Context, msgs []model.ChatMessage, tctx TurnContext) Reply {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "assistant.brain.summarizer"})

	userMsgs := make([]model.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == model.RoleUser {
			userMsgs = append(userMsgs, m)
		}
	}
	if len(userMsgs) == 0 {
		return Reply{IsChecklist: true, Bullets: []string{"(no requests found in this thread)"}, Question: ChecklistQuestion}
	}

	resp, err := s.llm.Complete(ctx, llm.Request{
		System:      checklistSystemPrompt,
		Prompt:      s.buildPrompt(userMsgs, tctx),
		MaxTokens:   s.maxTokens,
		Temperature: llm.Temp(0),
	})
	if err != nil {
		slog.WarnContext(ctx, "checklist call failed, building locally", "error", err)
		return localChecklist(userMsgs)
	}

	reply := ParseReply(resp.Text)
	if !reply.IsChecklist {
		slog.WarnContext(ctx, "checklist response failed validation, building locally",
			"response", logger.Truncate(resp.Text, 300))
		return localChecklist(userMsgs)
	}

	// Drop any prose the oracle put before the title; the checklist is
	// the whole reply.
	reply.Intro = ""
	return reply
}

func (s *Summarizer) buildPrompt(userMsgs []model.ChatMessage, tctx TurnContext) string {
	var b strings.Builder

	if tctx.ProjectName != "" {
		fmt.Fprintf(&b, "Project: %s\n", tctx.ProjectName)
	}
	if tctx.Section != "" {
		fmt.Fprintf(&b, "Dashboard section: %s\n", tctx.Section)
	}

	b.WriteString("\n## Everything the user wrote in this thread, oldest first\n")
	for i, m := range userMsgs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m.Content)
	}

	b.WriteString("\nProduce the checklist now.")
	return b.String()
}

// localChecklist is the oracle-free fallback: one bullet per recent
// user message, cut at the first clause boundary.
func localChecklist(userMsgs []model.ChatMessage) Reply {
	if len(userMsgs) > localChecklistDepth {
		userMsgs = userMsgs[len(userMsgs)-localChecklistDepth:]
	}

	bullets := make([]string, 0, len(userMsgs))
	for _, m := range userMsgs {
		if clause := firstClause(m.Content); clause != "" {
			bullets = append(bullets, clause)
		}
	}
	if len(bullets) == 0 {
		bullets = []string{"(no requests found in this thread)"}
	}

	return Reply{
		IsChecklist: true,
		Bullets:     bullets,
		Question:    ChecklistQuestion,
	}
}

// firstClause cuts text at the first sentence or clause boundary.
func firstClause(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexAny(text, ".!?;\n"); idx != -1 {
		text = text[:idx]
	}
	return logger.Truncate(strings.TrimSpace(text), 120)
}

const checklistSystemPrompt = `You summarize a user's requests to a smart-contract analysis assistant into a checklist they can approve.

Rules:
- Start with exactly this title line: Here's what you've asked for so far:
- Then one "- " bullet per distinct request the user made anywhere in the thread, not just the latest message. Merge duplicates.
- Keep each bullet short and imperative, e.g. "- Remove the admin role from the actor summary".
- End with one plain question asking whether to go ahead.
- Output nothing else: no greetings, no markdown headings, no commentary.`
