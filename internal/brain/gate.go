package brain

import (
	"strings"
	"unicode"

	"ilumina.app/assistant/internal/model"
)

// significantConfidence is the threshold below which an actionable
// classification is not trusted enough to offer execution.
const significantConfidence = 0.7

// confirmationPhrases is the closed affirmative allow-list, matched as a
// case-insensitive substring. Deliberately narrow: paraphrased approvals
// ("sure, go for it") are a known miss and fall through to
// re-confirmation, which is the safe side.
var confirmationPhrases = []string{"yes", "proceed", "confirm", "agree", "go ahead"}

// cancellationWords and cancellationPhrases form the negative
// allow-list. Single tokens match on word boundaries so that "no" does
// not fire inside "know" or "now"; multi-word phrases match as
// substrings.
var (
	cancellationWords   = []string{"no", "cancel", "stop"}
	cancellationPhrases = []string{"hold off", "not now"}
)

// PendingAction is the ephemeral awaiting-confirmation state. It is
// never stored on its own: each turn reconstructs it from the newest
// assistant message whose classification has needsConfirmation set.
type PendingAction struct {
	Step        model.Step
	Action      model.ActionKind
	Instruction string
}

// ReconstructPending derives the awaiting-confirmation state from
// history: a pending action exists iff the newest assistant message
// carries a classification with needsConfirmation still set. The
// instruction is the user message that triggered that proposal.
func ReconstructPending(history []model.ChatMessage) *PendingAction {
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.Role != model.RoleAssistant {
			continue
		}
		if m.Classification == nil || !m.Classification.NeedsConfirmation {
			return nil
		}

		pending := &PendingAction{
			Step:   m.Classification.Step,
			Action: m.Classification.Action,
		}
		for j := i - 1; j >= 0; j-- {
			if history[j].Role == model.RoleUser {
				pending.Instruction = history[j].Content
				break
			}
		}
		return pending
	}
	return nil
}

type GateDecision string

const (
	// GateReply returns a plain informational reply.
	GateReply GateDecision = "reply"
	// GateConfirm holds the action behind a checklist and waits.
	GateConfirm GateDecision = "await_confirmation"
	// GateExecute forwards the pending action to the analysis platform.
	GateExecute GateDecision = "execute"
	// GateCancel drops the pending action and acknowledges.
	GateCancel GateDecision = "cancel"
)

type GateInput struct {
	Message        string
	Classification model.Classification
	NeedsGuidance  bool
	Pending        *PendingAction
}

type GateOutcome struct {
	Decision GateDecision

	// NeedsConfirmation is true only for GateConfirm.
	NeedsConfirmation bool

	// RewriteProse asks the caller to flatten a checklist-shaped raw
	// reply into prose before showing it.
	RewriteProse bool

	// Tone selects the prose phrasing for rewrites.
	Tone Tone
}

// EvaluateGate decides what happens to a classified user turn. The
// gate favors precision over recall: executing without consent is
// unacceptable, re-asking for confirmation is merely annoying.
func EvaluateGate(in GateInput) GateOutcome {
	confirmed := IsConfirmationPhrase(in.Message)
	cancelled := IsCancellationPhrase(in.Message)

	if in.Pending != nil {
		if confirmed {
			return GateOutcome{Decision: GateExecute, Tone: ToneAcknowledgment}
		}
		if cancelled {
			return GateOutcome{Decision: GateCancel, Tone: ToneAcknowledgment}
		}
		// Anything else replaces the pending action rather than
		// stacking on it; evaluation continues below.
	}

	needsConfirmation := isSignificantAction(in.Classification) &&
		!isExemptAction(in.Classification, in.NeedsGuidance) &&
		in.Classification.IsActionable &&
		!confirmed &&
		!in.Classification.ActionTaken

	if needsConfirmation {
		return GateOutcome{
			Decision:          GateConfirm,
			NeedsConfirmation: true,
		}
	}

	outcome := GateOutcome{Decision: GateReply, Tone: replyTone(in.Message, confirmed)}
	if confirmed || !in.Classification.IsActionable {
		outcome.RewriteProse = true
	}
	return outcome
}

// IsConfirmationPhrase reports whether the message approves a proposed
// action: case-insensitive substring match against the affirmative
// allow-list.
func IsConfirmationPhrase(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range confirmationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// IsCancellationPhrase reports whether the message calls a proposed
// action off.
func IsCancellationPhrase(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range cancellationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	for _, w := range words {
		for _, token := range cancellationWords {
			if w == token {
				return true
			}
		}
	}
	return false
}

func isSignificantAction(c model.Classification) bool {
	switch c.Action {
	case model.ActionUpdate, model.ActionRefine, model.ActionRun:
		return c.Confidence >= significantConfidence
	}
	return false
}

func isExemptAction(c model.Classification, needsGuidance bool) bool {
	if needsGuidance {
		return true
	}
	switch c.Action {
	case model.ActionClarify, model.ActionNeedsFollowup:
		return true
	}
	return false
}

// replyTone picks the prose phrasing for rewritten replies: answers for
// questions, receipts for confirmations, restatement otherwise.
func replyTone(message string, confirmed bool) Tone {
	if confirmed {
		return ToneAcknowledgment
	}
	if looksLikeQuestion(message) {
		return ToneAnswer
	}
	return ToneRestatement
}

var interrogatives = []string{"what", "how", "why", "when", "where", "who", "which", "can", "could", "would", "should", "does", "do", "is", "are"}

func looksLikeQuestion(message string) bool {
	trimmed := strings.TrimSpace(message)
	if strings.HasSuffix(trimmed, "?") {
		return true
	}

	lower := strings.ToLower(trimmed)
	for _, w := range interrogatives {
		if strings.HasPrefix(lower, w+" ") {
			return true
		}
	}
	return false
}
