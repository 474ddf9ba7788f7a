package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ilumina.app/assistant/internal/http/dto"
	"ilumina.app/assistant/internal/model"
	"ilumina.app/assistant/internal/service"
	"ilumina.app/assistant/internal/store"
)

const defaultMessagePageSize = 50

type ConversationHandler struct {
	sessions service.SessionService
}

func NewConversationHandler(sessions service.SessionService) *ConversationHandler {
	return &ConversationHandler{sessions: sessions}
}

// Start opens a fresh conversation thread, leaving any previous thread
// for the same submission and section untouched.
func (h *ConversationHandler) Start(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid conversation request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.sessions.StartNew(ctx, req.SubmissionID, model.ParseSection(req.Section))
	if err != nil {
		slog.ErrorContext(ctx, "failed to start conversation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start conversation"})
		return
	}

	c.JSON(http.StatusCreated, dto.ToConversationResponse(conv))
}

func (h *ConversationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	submissionID := c.Query("submission_id")
	if submissionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "submission_id is required"})
		return
	}

	conversations, err := h.sessions.ListBySubmission(ctx, submissionID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list conversations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}

	out := make([]dto.ConversationResponse, 0, len(conversations))
	for i := range conversations {
		out = append(out, *dto.ToConversationResponse(&conversations[i]))
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

// Messages returns a conversation's messages newest first, for display.
func (h *ConversationHandler) Messages(c *gin.Context) {
	ctx := c.Request.Context()

	conversationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	limit := int32(defaultMessagePageSize)
	if raw := c.Query("limit"); raw != "" {
		parsed, parseErr := strconv.ParseInt(raw, 10, 32)
		if parseErr != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = int32(parsed)
	}

	if _, err := h.sessions.Get(ctx, conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load conversation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}

	messages, err := h.sessions.HistoryDesc(ctx, conversationID, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load messages", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	out := make([]dto.MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, dto.ToMessageResponse(m))
	}
	c.JSON(http.StatusOK, dto.ListMessagesResponse{
		ConversationID: conversationID,
		Messages:       out,
	})
}
