// Package handler provides HTTP handlers for the InsightPDF service.
package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/insight-pdf/internal/insightpdf/biz"
)

// DocumentHandler handles document upload and lifecycle requests.
type DocumentHandler struct {
	service       biz.Service
	maxUploadSize int64
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(service biz.Service, maxUploadSize int64) *DocumentHandler {
	return &DocumentHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
	}
}

// UploadResponse 上传结果。
type UploadResponse struct {
	Document interface{} `json:"document"`
	Reused   bool        `json:"reused"`
}

// Upload 接收 multipart 上传的 PDF 并构建会话。
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "missing form file field \"file\": "+err.Error())
		return
	}

	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		respondError(c, http.StatusBadRequest, "only .pdf files are accepted")
		return
	}

	if h.maxUploadSize > 0 && fileHeader.Size > h.maxUploadSize {
		respondError(c, http.StatusRequestEntityTooLarge, "uploaded file exceeds the size limit")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to open uploaded file: "+err.Error())
		return
	}
	defer file.Close()

	doc, reused, err := h.service.Upload(c.Request.Context(), filepath.Base(fileHeader.Filename), file)
	if err != nil {
		if errors.Is(err, biz.ErrNotPDF) {
			respondError(c, http.StatusBadRequest, "uploaded content is not a valid PDF")
			return
		}
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	message := "document indexed successfully"
	if reused {
		message = "document already indexed, session reused"
	}
	respondOK(c, message, UploadResponse{Document: doc, Reused: reused})
}

// List 列出所有已上传的文档。
func (h *DocumentHandler) List(c *gin.Context) {
	docs := h.service.ListDocuments(c.Request.Context())
	respondOK(c, "success", docs)
}

// Get 获取单个文档的元数据。
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, biz.ErrDocumentNotFound) {
			respondError(c, http.StatusNotFound, "document not found")
			return
		}
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(c, "success", doc)
}

// Delete 删除文档会话及其向量。
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, biz.ErrDocumentNotFound) {
			respondError(c, http.StatusNotFound, "document not found")
			return
		}
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(c, "document deleted", nil)
}
