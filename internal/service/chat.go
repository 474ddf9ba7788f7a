package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"ilumina.app/assistant/common/id"
	"ilumina.app/assistant/common/logger"
	"ilumina.app/assistant/internal/brain"
	"ilumina.app/assistant/internal/model"
	"ilumina.app/assistant/internal/platform"
)

// User-visible texts for the non-happy paths. The plan-limit message is
// shown verbatim, never wrapped in a generic error.
const (
	planLimitReply = "You've reached your plan's analysis limit. Upgrade your plan to run more analyses, or wait for your quota to reset."

	executionFailedReply = "I couldn't start that run: the analysis service reported an error. Nothing has been changed. You can say \"proceed\" to try again, or give me a different instruction."

	cancelledReply = "Okay, I won't make those changes. Let me know what you'd like to do instead."

	degradedReply = "Sorry, I couldn't process that just now. Please try again."
)

// TurnInput carries one user turn plus its explicit context. Nothing is
// inferred from ambient state: the conversation id, when known, arrives
// here.
type TurnInput struct {
	SubmissionID   string
	Section        model.Section
	ConversationID *int64
	ProjectName    string
	CurrentStep    model.Step
	Message        string
}

// TurnResult is what the caller renders: the reply text, the
// classification attached to it, and the conversation id to thread
// subsequent turns with.
type TurnResult struct {
	Reply          string
	Classification model.Classification
	ConversationID int64
}

// ChatService runs the classify-gate-confirm loop for user turns.
type ChatService interface {
	HandleTurn(ctx context.Context, in TurnInput) (*TurnResult, error)
}

type chatService struct {
	sessions   SessionService
	classifier *brain.Classifier
	continuity *brain.ContinuityClassifier
	summarizer *brain.Summarizer
	runner     platform.Runner
}

func NewChatService(
	sessions SessionService,
	classifier *brain.Classifier,
	continuity *brain.ContinuityClassifier,
	summarizer *brain.Summarizer,
	runner platform.Runner,
) ChatService {
	return &chatService{
		sessions:   sessions,
		classifier: classifier,
		continuity: continuity,
		summarizer: summarizer,
		runner:     runner,
	}
}

// HandleTurn processes one user message end to end: resolve the
// conversation, judge continuity, classify, gate, optionally execute,
// then persist the user/assistant pair atomically. The steps run
// strictly in sequence; each depends on the previous result.
//
// Oracle failures degrade to fallbacks and never fail the turn.
// Execution failures surface as reply text. Only storage failures
// return an error, and those leave no partial history behind.
func (s *chatService) HandleTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		SubmissionID: logger.Ptr(in.SubmissionID),
		Section:      logger.Ptr(string(in.Section)),
		Component:    "assistant.service.chat",
	})

	if strings.TrimSpace(in.Message) == "" {
		return nil, errors.New("message is empty")
	}

	conv, err := s.sessions.Resolve(ctx, in.SubmissionID, in.Section, in.ConversationID)
	if err != nil {
		return nil, err
	}

	history, err := s.sessions.History(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	continuity := s.continuity.Classify(ctx, in.Message, history)
	if continuity.Type == model.ContinuityNewConversation && len(history) > 0 {
		slog.InfoContext(ctx, "topic change detected, starting fresh conversation",
			"previous_conversation_id", conv.ID,
			"confidence", continuity.Confidence)

		conv, err = s.sessions.StartNew(ctx, in.SubmissionID, in.Section)
		if err != nil {
			return nil, err
		}
		history = nil
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{ConversationID: logger.Ptr(conv.ID)})

	turn := s.classifier.Classify(ctx, in.Message, brain.TurnContext{
		ProjectName: in.ProjectName,
		Section:     conv.Section,
		CurrentStep: in.CurrentStep,
		History:     history,
	})

	pending := brain.ReconstructPending(history)
	outcome := brain.EvaluateGate(brain.GateInput{
		Message:        in.Message,
		Classification: turn.Classification,
		NeedsGuidance:  turn.NeedsGuidance,
		Pending:        pending,
	})

	classification := turn.Classification
	var reply string

	switch outcome.Decision {
	case brain.GateExecute:
		reply, classification = s.execute(ctx, in, conv, pending, classification)

	case brain.GateCancel:
		slog.InfoContext(ctx, "pending action cancelled by user",
			"step", pending.Step,
			"action", pending.Action)
		classification.NeedsConfirmation = false
		classification.ActionTaken = false
		reply = cancelledReply

	case brain.GateConfirm:
		classification.NeedsConfirmation = true
		reply = s.confirmationReply(ctx, in, conv, history, turn)

	default:
		reply = s.plainReply(turn, outcome)
	}

	userMsg := &model.ChatMessage{
		ID:             id.New(),
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        in.Message,
	}
	assistantMsg := &model.ChatMessage{
		ID:             id.New(),
		ConversationID: conv.ID,
		Role:           model.RoleAssistant,
		Content:        reply,
		Classification: &classification,
	}

	if err := s.sessions.AppendTurn(ctx, userMsg, assistantMsg); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "turn handled",
		"decision", outcome.Decision,
		"step", classification.Step,
		"action", classification.Action,
		"needs_confirmation", classification.NeedsConfirmation,
		"action_taken", classification.ActionTaken)

	return &TurnResult{
		Reply:          reply,
		Classification: classification,
		ConversationID: conv.ID,
	}, nil
}

// execute forwards a confirmed pending action to the analysis platform.
// actionTaken reflects the call's outcome; needsConfirmation is cleared
// on every path so the invariant between the two flags holds.
func (s *chatService) execute(
	ctx context.Context,
	in TurnInput,
	conv *model.Conversation,
	pending *brain.PendingAction,
	classification model.Classification,
) (string, model.Classification) {
	classification.NeedsConfirmation = false
	classification.ActionTaken = false

	result, err := s.runner.Run(ctx, platform.RunRequest{
		SubmissionID: in.SubmissionID,
		Section:      conv.Section,
		Step:         pending.Step,
		Action:       pending.Action,
		Instruction:  pending.Instruction,
	})
	if err != nil {
		if errors.Is(err, platform.ErrPlanLimit) {
			slog.WarnContext(ctx, "analysis run rejected by plan limit",
				"step", pending.Step,
				"action", pending.Action)
			return planLimitReply, classification
		}

		slog.ErrorContext(ctx, "analysis run failed to start",
			"error", err,
			"step", pending.Step,
			"action", pending.Action)
		return executionFailedReply, classification
	}

	classification.ActionTaken = true

	slog.InfoContext(ctx, "analysis run started",
		"run_id", result.RunID,
		"status", result.Status,
		"step", pending.Step,
		"action", pending.Action)

	return fmt.Sprintf("Confirmed. I've started %s; I'll post an update here when it finishes.",
		describeStep(pending.Step)), classification
}

// confirmationReply produces the checklist the user must approve. The
// oracle's own reply is kept when it already is a checklist; otherwise
// the summarizer builds one over the whole thread including this turn.
func (s *chatService) confirmationReply(
	ctx context.Context,
	in TurnInput,
	conv *model.Conversation,
	history []model.ChatMessage,
	turn brain.TurnClassification,
) string {
	if parsed := brain.ParseReply(turn.Reply); parsed.IsChecklist {
		return turn.Reply
	}

	thread := append(slices.Clone(history), model.ChatMessage{
		Role:    model.RoleUser,
		Content: in.Message,
	})

	checklist := s.summarizer.Summarize(ctx, thread, brain.TurnContext{
		ProjectName: in.ProjectName,
		Section:     conv.Section,
		CurrentStep: in.CurrentStep,
	})
	return checklist.Render()
}

// plainReply returns the informational reply, flattening checklist
// framing into prose when the gate asked for it.
func (s *chatService) plainReply(turn brain.TurnClassification, outcome brain.GateOutcome) string {
	if turn.Reply == "" {
		return degradedReply
	}

	if outcome.RewriteProse {
		if parsed := brain.ParseReply(turn.Reply); parsed.IsChecklist {
			return parsed.Prose(outcome.Tone)
		}
	}
	return turn.Reply
}

// describeStep renders a pipeline step for user-facing status text.
func describeStep(step model.Step) string {
	switch step {
	case model.StepAnalyzeActors:
		return "the actor analysis"
	case model.StepAnalyzeProject:
		return "the project analysis"
	case model.StepAnalyzeDeployment:
		return "the deployment analysis"
	case model.StepVerifyDeploymentScript:
		return "the deployment script verification"
	default:
		return "the requested run"
	}
}
