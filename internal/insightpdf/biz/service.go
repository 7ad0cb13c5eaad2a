package biz

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/insight-pdf/internal/insightpdf/metrics"
	"github.com/kart-io/insight-pdf/internal/insightpdf/store"
	"github.com/kart-io/insight-pdf/internal/model"
	"github.com/kart-io/insight-pdf/internal/pkg/docutil"
)

// Service 定义 InsightPDF 服务接口。
type Service interface {
	// Upload 上传 PDF 并构建（或复用）会话，reused 表示命中已有会话。
	Upload(ctx context.Context, filename string, r io.Reader) (*model.Document, bool, error)
	// ListDocuments 列出所有已上传的文档。
	ListDocuments(ctx context.Context) []*model.Document
	// GetDocument 获取单个文档的元数据。
	GetDocument(ctx context.Context, documentID string) (*model.Document, error)
	// DeleteDocument 删除文档会话及其向量。
	DeleteDocument(ctx context.Context, documentID string) error
	// Query 对指定文档提问。
	Query(ctx context.Context, documentID, question string) (*model.QueryResult, error)
	// GetStats 获取服务统计信息。
	GetStats(ctx context.Context) (map[string]any, error)
}

// InsightService 组合会话管理器、答案缓存与指标，提供完整服务。
type InsightService struct {
	sessions   *SessionManager
	cache      *AnswerCache
	store      store.VectorStore
	collection string
	metrics    *metrics.Metrics

	embedProviderName string
	chatProviderName  string
}

// 确保 InsightService 实现了 Service 接口。
var _ Service = (*InsightService)(nil)

// NewInsightService 创建服务实例。
func NewInsightService(
	sessions *SessionManager,
	cache *AnswerCache,
	vectorStore store.VectorStore,
	collection string,
	m *metrics.Metrics,
	embedProviderName, chatProviderName string,
) *InsightService {
	if m == nil {
		m = metrics.Get()
	}
	return &InsightService{
		sessions:          sessions,
		cache:             cache,
		store:             vectorStore,
		collection:        collection,
		metrics:           m,
		embedProviderName: embedProviderName,
		chatProviderName:  chatProviderName,
	}
}

// Upload 上传 PDF 并构建（或复用）会话。
func (s *InsightService) Upload(ctx context.Context, filename string, r io.Reader) (*model.Document, bool, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		s.metrics.RecordUpload(false, err)
		return nil, false, fmt.Errorf("读取上传内容失败: %w", err)
	}

	if !docutil.IsPDF(data) {
		s.metrics.RecordUpload(false, ErrNotPDF)
		return nil, false, ErrNotPDF
	}

	session, reused, err := s.sessions.GetOrCreate(ctx, filename, data)
	s.metrics.RecordUpload(reused, err)
	if err != nil {
		return nil, false, err
	}

	return session.Document, reused, nil
}

// ListDocuments 列出所有已上传的文档。
func (s *InsightService) ListDocuments(_ context.Context) []*model.Document {
	sessions := s.sessions.List()
	docs := make([]*model.Document, len(sessions))
	for i, session := range sessions {
		docs[i] = session.Document
	}
	return docs
}

// GetDocument 获取单个文档的元数据。
func (s *InsightService) GetDocument(_ context.Context, documentID string) (*model.Document, error) {
	session, ok := s.sessions.Get(documentID)
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return session.Document, nil
}

// DeleteDocument 删除文档会话、向量及缓存答案。
func (s *InsightService) DeleteDocument(ctx context.Context, documentID string) error {
	if err := s.sessions.Delete(ctx, documentID); err != nil {
		return err
	}

	// 缓存清理失败不影响删除结果
	if s.cache != nil {
		if err := s.cache.DeleteByDocument(ctx, documentID); err != nil {
			logger.Warnw("清理文档答案缓存失败", "document_id", documentID, "error", err.Error())
		}
	}
	return nil
}

// Query 对指定文档提问，路由到合适的引擎生成答案。
func (s *InsightService) Query(ctx context.Context, documentID, question string) (*model.QueryResult, error) {
	session, ok := s.sessions.Get(documentID)
	if !ok {
		err := ErrDocumentNotFound
		s.metrics.RecordQuery(false, err)
		return nil, err
	}

	// 1. 尝试命中答案缓存
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, documentID, question)
		if err == nil && cached != nil {
			cached.Cached = true
			s.metrics.RecordQuery(true, nil)
			return cached, nil
		}
		// 缓存未命中或出错，继续正常流程
	}

	// 2. 路由并生成答案
	llmStart := time.Now()
	resp, route, err := session.Router.Query(ctx, question)
	llmDuration := time.Since(llmStart)

	promptTokens, completionTokens := 0, 0
	if resp != nil && resp.TokenUsage != nil {
		promptTokens = resp.TokenUsage.PromptTokens
		completionTokens = resp.TokenUsage.CompletionTokens
	}
	s.metrics.RecordLLMCall(llmDuration, promptTokens, completionTokens, err)

	if err != nil {
		s.metrics.RecordQuery(false, err)
		return nil, err
	}

	result := &model.QueryResult{
		Answer:  resp.Answer,
		Route:   route,
		Sources: resp.Sources,
	}

	// 3. 写入缓存，失败不影响返回
	if s.cache != nil {
		_ = s.cache.Set(ctx, documentID, question, result)
	}

	s.metrics.RecordQuery(false, nil)
	return result, nil
}

// GetStats 获取服务统计信息。
func (s *InsightService) GetStats(ctx context.Context) (map[string]any, error) {
	count, err := s.store.GetStats(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("获取向量存储统计失败: %w", err)
	}

	stats := map[string]any{
		"collection":     s.collection,
		"documents":      s.sessions.Count(),
		"chunk_count":    count,
		"embed_provider": s.embedProviderName,
		"chat_provider":  s.chatProviderName,
	}

	if s.cache != nil {
		if cacheStats, err := s.cache.GetStats(ctx); err == nil {
			stats["cache"] = cacheStats
		}
	}

	stats["metrics"] = s.metrics.Stats()
	return stats, nil
}
