package dto

type IngestAnalysisEventRequest struct {
	SubmissionID string  `json:"submission_id" binding:"required,min=1,max=255"`
	Section      string  `json:"section" binding:"omitempty,max=64"`
	Step         string  `json:"step" binding:"required,max=64"`
	Status       string  `json:"status" binding:"required,max=32"`
	RunID        *string `json:"run_id,omitempty" binding:"omitempty,max=255"`
	Detail       *string `json:"detail,omitempty" binding:"omitempty,max=2048"`
}

type IngestAnalysisEventResponse struct {
	Enqueued  bool   `json:"enqueued"`
	EventType string `json:"event_type"`
}
