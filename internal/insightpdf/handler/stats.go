package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/insight-pdf/internal/insightpdf/biz"
	"github.com/kart-io/insight-pdf/internal/insightpdf/metrics"
)

// metricsNamespace Prometheus 指标前缀。
const metricsNamespace = "insightpdf"

// StatsHandler handles statistics and health requests.
type StatsHandler struct {
	service biz.Service
	metrics *metrics.Metrics
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(service biz.Service, m *metrics.Metrics) *StatsHandler {
	if m == nil {
		m = metrics.Get()
	}
	return &StatsHandler{service: service, metrics: m}
}

// Stats 返回服务统计信息。
func (h *StatsHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(c, "success", stats)
}

// Metrics 以 Prometheus 文本格式导出业务指标。
func (h *StatsHandler) Metrics(c *gin.Context) {
	c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	c.String(http.StatusOK, h.metrics.Export(metricsNamespace, ""))
}

// Healthz 存活探针。
func (h *StatsHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
