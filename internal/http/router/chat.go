package router

import (
	"github.com/gin-gonic/gin"

	"ilumina.app/assistant/internal/http/handler"
)

func ChatRouter(router *gin.RouterGroup, handler *handler.ChatHandler) {
	router.POST("/turns", handler.HandleTurn)
}
