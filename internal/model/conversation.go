package model

import "time"

// Conversation is a chat thread scoped to one (submission, section) pair.
// A submission may accumulate many historical conversations per section;
// the newest one is the open thread from the dashboard's perspective.
type Conversation struct {
	ID           int64     `json:"id"`
	SubmissionID string    `json:"submission_id"`
	Section      Section   `json:"section"`
	CreatedAt    time.Time `json:"created_at"`
}

type ContinuityType string

const (
	ContinuityNewConversation      ContinuityType = "new_conversation"
	ContinuityContinueConversation ContinuityType = "continue_conversation"
)

// ContinuityResult is the continuity classifier's judgement on whether a
// message extends the open thread or changes topic.
type ContinuityResult struct {
	Type        ContinuityType `json:"type"`
	Confidence  float64        `json:"confidence"`
	Explanation string         `json:"explanation,omitempty"`
}
