package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/insight-pdf/internal/insightpdf/biz"
	"github.com/kart-io/insight-pdf/internal/insightpdf/metrics"
	"github.com/kart-io/insight-pdf/internal/model"
)

// fakeService 可编程的 biz.Service 实现。
type fakeService struct {
	uploadDoc    *model.Document
	uploadReused bool
	uploadErr    error
	docs         map[string]*model.Document
	queryResult  *model.QueryResult
	queryErr     error
	queryDelay   time.Duration
	deleteErr    error
}

var _ biz.Service = (*fakeService)(nil)

func (f *fakeService) Upload(_ context.Context, _ string, r io.Reader) (*model.Document, bool, error) {
	_, _ = io.ReadAll(r)
	return f.uploadDoc, f.uploadReused, f.uploadErr
}

func (f *fakeService) ListDocuments(_ context.Context) []*model.Document {
	docs := make([]*model.Document, 0, len(f.docs))
	for _, doc := range f.docs {
		docs = append(docs, doc)
	}
	return docs
}

func (f *fakeService) GetDocument(_ context.Context, id string) (*model.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, biz.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeService) DeleteDocument(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.docs[id]; !ok {
		return biz.ErrDocumentNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeService) Query(ctx context.Context, id, _ string) (*model.QueryResult, error) {
	if _, ok := f.docs[id]; !ok {
		return nil, biz.ErrDocumentNotFound
	}
	if f.queryDelay > 0 {
		select {
		case <-time.After(f.queryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.queryResult, f.queryErr
}

func (f *fakeService) GetStats(_ context.Context) (map[string]any, error) {
	return map[string]any{"documents": len(f.docs)}, nil
}

func newTestEngine(service biz.Service, queryTimeout time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	docHandler := NewDocumentHandler(service, 1<<20)
	queryHandler := NewQueryHandler(service, queryTimeout)
	statsHandler := NewStatsHandler(service, metrics.NewMetrics())

	engine.POST("/v1/documents", docHandler.Upload)
	engine.GET("/v1/documents", docHandler.List)
	engine.GET("/v1/documents/:id", docHandler.Get)
	engine.DELETE("/v1/documents/:id", docHandler.Delete)
	engine.POST("/v1/documents/:id/query", queryHandler.Query)
	engine.GET("/v1/stats", statsHandler.Stats)
	engine.GET("/healthz", statsHandler.Healthz)
	engine.GET("/metrics", statsHandler.Metrics)
	return engine
}

// multipartUpload 构造带单个文件字段的 multipart 请求体。
func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("创建表单文件失败: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("写入表单文件失败: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("关闭表单失败: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestDocumentHandler_Upload(t *testing.T) {
	service := &fakeService{
		uploadDoc: &model.Document{ID: "doc-1", Filename: "report.pdf", ChunkNum: 3},
	}
	engine := newTestEngine(service, 0)

	body, contentType := multipartUpload(t, "report.pdf", []byte("%PDF-1.4 content"))
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"doc-1"`) {
		t.Errorf("响应应包含文档 ID: %s", w.Body.String())
	}
}

func TestDocumentHandler_UploadRejectsExtension(t *testing.T) {
	engine := newTestEngine(&fakeService{}, 0)

	body, contentType := multipartUpload(t, "notes.txt", []byte("plain text"))
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("非 .pdf 扩展名应返回 400，实际 %d", w.Code)
	}
}

func TestDocumentHandler_UploadRejectsNonPDFContent(t *testing.T) {
	service := &fakeService{uploadErr: biz.ErrNotPDF}
	engine := newTestEngine(service, 0)

	body, contentType := multipartUpload(t, "fake.pdf", []byte("not a pdf"))
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("非 PDF 内容应返回 400，实际 %d", w.Code)
	}
}

func TestDocumentHandler_UploadMissingFile(t *testing.T) {
	engine := newTestEngine(&fakeService{}, 0)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader(""))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("缺少文件字段应返回 400，实际 %d", w.Code)
	}
}

func TestDocumentHandler_GetNotFound(t *testing.T) {
	engine := newTestEngine(&fakeService{docs: map[string]*model.Document{}}, 0)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-404", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("未知文档应返回 404，实际 %d", w.Code)
	}
}

func TestDocumentHandler_Delete(t *testing.T) {
	service := &fakeService{docs: map[string]*model.Document{
		"doc-1": {ID: "doc-1"},
	}}
	engine := newTestEngine(service, 0)

	req := httptest.NewRequest(http.MethodDelete, "/v1/documents/doc-1", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if len(service.docs) != 0 {
		t.Error("文档应已删除")
	}
}

func TestQueryHandler_Query(t *testing.T) {
	service := &fakeService{
		docs: map[string]*model.Document{"doc-1": {ID: "doc-1"}},
		queryResult: &model.QueryResult{
			Answer: "the answer",
			Route:  &model.RouteDecision{Tool: "vector_search"},
		},
	}
	engine := newTestEngine(service, 0)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/query",
		strings.NewReader(`{"question":"what is this"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "the answer") {
		t.Errorf("响应应包含答案: %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "vector_search") {
		t.Errorf("响应应包含路由信息: %s", w.Body.String())
	}
}

func TestQueryHandler_MissingQuestion(t *testing.T) {
	engine := newTestEngine(&fakeService{}, 0)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/query",
		strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("缺少 question 应返回 400，实际 %d", w.Code)
	}
}

func TestQueryHandler_Timeout(t *testing.T) {
	service := &fakeService{
		docs:       map[string]*model.Document{"doc-1": {ID: "doc-1"}},
		queryDelay: 200 * time.Millisecond,
	}
	engine := newTestEngine(service, 50*time.Millisecond)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/query",
		strings.NewReader(`{"question":"slow"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusRequestTimeout {
		t.Errorf("超时应返回 408，实际 %d", w.Code)
	}
}

func TestQueryHandler_DocumentNotFound(t *testing.T) {
	engine := newTestEngine(&fakeService{docs: map[string]*model.Document{}}, 0)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-404/query",
		strings.NewReader(`{"question":"anything"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("未知文档应返回 404，实际 %d", w.Code)
	}
}

func TestStatsHandler(t *testing.T) {
	engine := newTestEngine(&fakeService{docs: map[string]*model.Document{}}, 0)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("健康检查应返回 ok，实际 %d: %s", w.Code, w.Body.String())
	}
}

func TestStatsHandler_Metrics(t *testing.T) {
	engine := newTestEngine(&fakeService{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("指标应为文本格式，实际 %q", ct)
	}
	if !strings.Contains(w.Body.String(), "insightpdf_uploads_total") {
		t.Errorf("指标输出应包含上传计数: %s", w.Body.String())
	}
}
