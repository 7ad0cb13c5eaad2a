// Package router registers the InsightPDF HTTP routes.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/insight-pdf/internal/insightpdf/handler"
	"github.com/kart-io/insight-pdf/internal/insightpdf/web"
)

// Register registers all service routes on the engine.
func Register(
	engine *gin.Engine,
	docHandler *handler.DocumentHandler,
	queryHandler *handler.QueryHandler,
	statsHandler *handler.StatsHandler,
) {
	// 上传与问答页面
	engine.GET("/", web.Index)
	engine.GET("/healthz", statsHandler.Healthz)
	engine.GET("/metrics", statsHandler.Metrics)

	v1 := engine.Group("/v1")
	{
		documents := v1.Group("/documents")
		{
			documents.POST("", docHandler.Upload)
			documents.GET("", docHandler.List)
			documents.GET("/:id", docHandler.Get)
			documents.DELETE("/:id", docHandler.Delete)
			documents.POST("/:id/query", queryHandler.Query)
		}

		v1.GET("/stats", statsHandler.Stats)
	}

	logger.Info("HTTP routes registered")
}
