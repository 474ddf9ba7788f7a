package router

import (
	"github.com/gin-gonic/gin"

	"ilumina.app/assistant/internal/http/handler"
	"ilumina.app/assistant/internal/service"
)

type RouterConfig struct {
	WebhookSecret   string
	TraceHeaderName string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		chatHandler := handler.NewChatHandler(services.Chat())
		ChatRouter(v1.Group("/chat"), chatHandler)

		conversationHandler := handler.NewConversationHandler(services.Sessions())
		ConversationRouter(v1.Group("/conversations"), conversationHandler)

		eventHandler := handler.NewEventIngestHandler(services.AnalysisEvents(), cfg.WebhookSecret, cfg.TraceHeaderName)
		EventRouter(v1.Group("/events"), eventHandler)
	}
}
