package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Step identifies which stage of the analysis pipeline a request targets.
type Step string

const (
	StepAnalyzeActors          Step = "analyze_actors"
	StepAnalyzeProject         Step = "analyze_project"
	StepAnalyzeDeployment      Step = "analyze_deployment"
	StepVerifyDeploymentScript Step = "verify_deployment_script"
	StepUnknown                Step = "unknown"
)

// ActionKind is the kind of operation the user wants performed.
type ActionKind string

const (
	ActionRefine        ActionKind = "refine"
	ActionClarify       ActionKind = "clarify"
	ActionUpdate        ActionKind = "update"
	ActionRun           ActionKind = "run"
	ActionNeedsFollowup ActionKind = "needs_followup"
	ActionUnknown       ActionKind = "unknown"
)

// Section is the logical area of the dashboard a conversation is scoped to.
type Section string

const (
	SectionProjectSummary         Section = "project_summary"
	SectionActorSummary           Section = "actor_summary"
	SectionDeploymentInstructions Section = "deployment_instructions"
	SectionImplementation         Section = "implementation"
	SectionValidationRules        Section = "validation_rules"
	SectionGeneral                Section = "general"
)

func (s Step) Valid() bool {
	switch s {
	case StepAnalyzeActors, StepAnalyzeProject, StepAnalyzeDeployment, StepVerifyDeploymentScript, StepUnknown:
		return true
	}
	return false
}

func (s *Step) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}

	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("step must be a string: %w", err)
	}

	*s = Step(strings.ToLower(strings.TrimSpace(raw)))
	return nil
}

func (a ActionKind) Valid() bool {
	switch a {
	case ActionRefine, ActionClarify, ActionUpdate, ActionRun, ActionNeedsFollowup, ActionUnknown:
		return true
	}
	return false
}

func (a *ActionKind) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*a = ""
		return nil
	}

	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("action must be a string: %w", err)
	}

	*a = ActionKind(strings.ToLower(strings.TrimSpace(raw)))
	return nil
}

// ParseSection maps arbitrary client input onto the closed Section set.
// Unrecognized or empty values fall back to the general section.
func ParseSection(s string) Section {
	section := Section(strings.ToLower(strings.TrimSpace(s)))
	switch section {
	case SectionProjectSummary, SectionActorSummary, SectionDeploymentInstructions,
		SectionImplementation, SectionValidationRules, SectionGeneral:
		return section
	}
	return SectionGeneral
}

// Classification is the typed intent attached to an assistant ChatMessage.
//
// The field names and enum values are a fixed contract with the dashboard:
// downstream branching is keyed on them, so they must not be renamed.
type Classification struct {
	Step        Step       `json:"step"`
	Action      ActionKind `json:"action"`
	Confidence  float64    `json:"confidence"`
	Explanation string     `json:"explanation,omitempty"`

	// IsActionable reports whether fulfilling the request requires a
	// state change in the analysis platform.
	IsActionable bool `json:"isActionable"`

	// NeedsConfirmation is derived by the confirmation gate, not the
	// classifier. Never true at the same time as ActionTaken.
	NeedsConfirmation bool `json:"needsConfirmation"`

	// ActionTaken is set once the analysis platform has been invoked
	// for this request.
	ActionTaken bool `json:"actionTaken"`
}

// Normalize coerces oracle output onto the closed vocabularies: unknown
// enum members collapse to "unknown" and confidence is clamped to [0,1].
func (c *Classification) Normalize() {
	if !c.Step.Valid() {
		c.Step = StepUnknown
	}
	if !c.Action.Valid() {
		c.Action = ActionUnknown
	}
	if math.IsNaN(c.Confidence) || c.Confidence < 0 {
		c.Confidence = 0
	} else if c.Confidence > 1 {
		c.Confidence = 1
	}
}

// FallbackClassification is the safe default used when classification
// fails: non-actionable, so the turn degrades to an informational reply.
func FallbackClassification(explanation string) Classification {
	return Classification{
		Step:         StepUnknown,
		Action:       ActionUnknown,
		Confidence:   0,
		Explanation:  explanation,
		IsActionable: false,
	}
}

// ChatMessage is one turn in a conversation. Immutable once created:
// rows are appended by the session manager and never updated or deleted.
type ChatMessage struct {
	ID             int64           `json:"id"`
	ConversationID int64           `json:"conversation_id"`
	Role           Role            `json:"role"`
	Content        string          `json:"content"`
	Classification *Classification `json:"classification,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
