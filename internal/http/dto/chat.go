package dto

import (
	"time"

	"ilumina.app/assistant/internal/model"
)

type ChatTurnRequest struct {
	SubmissionID   string `json:"submission_id" binding:"required,min=1,max=255"`
	Section        string `json:"section" binding:"omitempty,max=64"`
	ConversationID *int64 `json:"conversation_id,string,omitempty" binding:"omitempty"`
	ProjectName    string `json:"project_name" binding:"omitempty,max=255"`
	CurrentStep    string `json:"current_step" binding:"omitempty,max=64"`
	Message        string `json:"message" binding:"required,min=1,max=8192"`
}

type ChatTurnResponse struct {
	Reply          string               `json:"reply"`
	ConversationID int64                `json:"conversation_id,string"`
	Classification model.Classification `json:"classification"`
}

type StartConversationRequest struct {
	SubmissionID string `json:"submission_id" binding:"required,min=1,max=255"`
	Section      string `json:"section" binding:"omitempty,max=64"`
}

type ConversationResponse struct {
	ID           int64     `json:"id,string"`
	SubmissionID string    `json:"submission_id"`
	Section      string    `json:"section"`
	CreatedAt    time.Time `json:"created_at"`
}

func ToConversationResponse(c *model.Conversation) *ConversationResponse {
	return &ConversationResponse{
		ID:           c.ID,
		SubmissionID: c.SubmissionID,
		Section:      string(c.Section),
		CreatedAt:    c.CreatedAt,
	}
}

type MessageResponse struct {
	ID             int64                 `json:"id,string"`
	Role           string                `json:"role"`
	Content        string                `json:"content"`
	Classification *model.Classification `json:"classification,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

func ToMessageResponse(m model.ChatMessage) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		Role:           string(m.Role),
		Content:        m.Content,
		Classification: m.Classification,
		CreatedAt:      m.CreatedAt,
	}
}

type ListMessagesResponse struct {
	ConversationID int64             `json:"conversation_id,string"`
	Messages       []MessageResponse `json:"messages"`
}
