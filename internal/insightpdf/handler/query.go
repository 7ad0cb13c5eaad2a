package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/insight-pdf/internal/insightpdf/biz"
)

// defaultQueryTimeout 单次问答的最长处理时间。
const defaultQueryTimeout = 60 * time.Second

// QueryHandler handles question answering requests.
type QueryHandler struct {
	service biz.Service
	timeout time.Duration
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(service biz.Service, timeout time.Duration) *QueryHandler {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &QueryHandler{
		service: service,
		timeout: timeout,
	}
}

// QueryRequest represents a query request.
type QueryRequest struct {
	Question string `json:"question" binding:"required"`
}

// Query 对指定文档提问。
func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	// 超时控制：LLM 链路可能很慢
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.service.Query(ctx, c.Param("id"), req.Question)
	if err != nil {
		if errors.Is(err, biz.ErrDocumentNotFound) {
			respondError(c, http.StatusNotFound, "document not found")
			return
		}
		if ctx.Err() == context.DeadlineExceeded {
			respondError(c, http.StatusRequestTimeout,
				"Query timeout: the request took too long to process. Please try again or simplify your question.")
			return
		}
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	respondOK(c, "success", result)
}
