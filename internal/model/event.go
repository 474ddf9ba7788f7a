package model

// AnalysisEventType is the kind of pipeline update the platform reports.
type AnalysisEventType string

const (
	AnalysisEventCompleted AnalysisEventType = "analysis_completed"
	AnalysisEventFailed    AnalysisEventType = "analysis_failed"
)

// AnalysisEvent is a run update posted by the analysis platform when a
// previously confirmed action finishes. The worker turns it into an
// assistant notification message on the submission's conversation.
type AnalysisEvent struct {
	SubmissionID string            `json:"submission_id"`
	Section      Section           `json:"section"`
	Step         Step              `json:"step"`
	Type         AnalysisEventType `json:"type"`
	RunID        string            `json:"run_id,omitempty"`
	Detail       string            `json:"detail,omitempty"`
}
