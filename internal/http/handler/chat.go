package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ilumina.app/assistant/internal/http/dto"
	"ilumina.app/assistant/internal/model"
	"ilumina.app/assistant/internal/service"
)

type ChatHandler struct {
	chatService service.ChatService
}

func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// HandleTurn runs one user message through the engine. Oracle and
// platform failures are already absorbed into the reply by the service,
// so anything surfacing here as an error is infrastructure.
func (h *ChatHandler) HandleTurn(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ChatTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid turn request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.chatService.HandleTurn(ctx, service.TurnInput{
		SubmissionID:   req.SubmissionID,
		Section:        model.ParseSection(req.Section),
		ConversationID: req.ConversationID,
		ProjectName:    req.ProjectName,
		CurrentStep:    model.Step(strings.ToLower(strings.TrimSpace(req.CurrentStep))),
		Message:        req.Message,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to handle turn", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process message"})
		return
	}

	c.JSON(http.StatusOK, dto.ChatTurnResponse{
		Reply:          result.Reply,
		ConversationID: result.ConversationID,
		Classification: result.Classification,
	})
}
