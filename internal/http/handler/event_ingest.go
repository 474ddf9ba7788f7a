package handler

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"ilumina.app/assistant/internal/http/dto"
	"ilumina.app/assistant/internal/service"
)

// WebhookSecretHeader carries the shared secret the analysis platform
// signs its run updates with.
const WebhookSecretHeader = "X-Webhook-Secret"

type EventIngestHandler struct {
	service     service.EventIngestService
	secret      string
	traceHeader string
}

func NewEventIngestHandler(service service.EventIngestService, secret, traceHeader string) *EventIngestHandler {
	return &EventIngestHandler{
		service:     service,
		secret:      secret,
		traceHeader: traceHeader,
	}
}

func (h *EventIngestHandler) Ingest(c *gin.Context) {
	ctx := c.Request.Context()

	if h.secret != "" {
		provided := c.GetHeader(WebhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
			slog.WarnContext(ctx, "webhook secret mismatch")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
	}

	var req dto.IngestAnalysisEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid ingest request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	traceID := c.GetHeader(h.traceHeader)
	if traceID == "" {
		if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
			traceID = spanCtx.TraceID().String()
		}
	}
	params := service.EventIngestParams{
		SubmissionID: req.SubmissionID,
		Section:      req.Section,
		Step:         req.Step,
		Status:       req.Status,
		RunID:        req.RunID,
		Detail:       req.Detail,
	}
	if traceID != "" {
		params.TraceID = &traceID
	}

	result, err := h.service.Ingest(ctx, params)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to ingest event", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest event"})
		return
	}

	c.JSON(http.StatusAccepted, dto.IngestAnalysisEventResponse{
		Enqueued:  result.Enqueued,
		EventType: string(result.EventType),
	})
}
