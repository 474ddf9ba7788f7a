package router

import (
	"github.com/gin-gonic/gin"

	"ilumina.app/assistant/internal/http/handler"
)

func EventRouter(router *gin.RouterGroup, handler *handler.EventIngestHandler) {
	router.POST("/analysis", handler.Ingest)
}
