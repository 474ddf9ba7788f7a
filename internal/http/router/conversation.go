package router

import (
	"github.com/gin-gonic/gin"

	"ilumina.app/assistant/internal/http/handler"
)

func ConversationRouter(router *gin.RouterGroup, handler *handler.ConversationHandler) {
	router.POST("", handler.Start)
	router.GET("", handler.List)
	router.GET("/:id/messages", handler.Messages)
}
