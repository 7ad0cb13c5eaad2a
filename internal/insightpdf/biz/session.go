package biz

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kart-io/logger"
	"golang.org/x/sync/singleflight"

	"github.com/kart-io/insight-pdf/internal/insightpdf/metrics"
	"github.com/kart-io/insight-pdf/internal/insightpdf/store"
	"github.com/kart-io/insight-pdf/internal/model"
	"github.com/kart-io/insight-pdf/internal/pkg/docutil"
	"github.com/kart-io/insight-pdf/internal/pkg/textutil"
	"github.com/kart-io/insight-pdf/pkg/infra/pool"
	"github.com/kart-io/insight-pdf/pkg/llm"
	"github.com/kart-io/insight-pdf/pkg/utils/id"
)

// 工具名称。
const (
	ToolSummary = "summary"
	ToolVector  = "vector_search"
)

// 工具描述，供选择器参考。
const (
	summaryToolDescription = "Useful for summarizing the uploaded PDF."
	vectorToolDescription  = "Useful for finding similar sentences in the uploaded PDF."
)

// Session 一个已索引文档及其查询引擎。
type Session struct {
	// Document 文档元数据。
	Document *model.Document
	// Chunks 文档的全部分块内容，摘要引擎直接使用。
	Chunks []string
	// Router 会话的路由查询引擎。
	Router *RouterQueryEngine
}

// SessionManagerConfig 会话管理器配置。
type SessionManagerConfig struct {
	// Collection 向量集合名称。
	Collection string
	// TopK 向量引擎检索的最大块数。
	TopK int
	// SummaryBatchSize 摘要引擎每批分块数。
	SummaryBatchSize int
	// EmbedBatchSize 索引时每次嵌入调用的分块数。
	EmbedBatchSize int
	// SplitterConfig 分块配置，nil 时使用默认值。
	SplitterConfig *SplitterConfig
}

// SessionManager 按文档内容哈希管理会话。
// 重复上传相同内容的文件会复用已构建的引擎，并发构建同一文档
// 通过 singleflight 合并为一次。
type SessionManager struct {
	mu     sync.RWMutex
	byHash map[string]*Session
	byID   map[string]*Session
	sf     singleflight.Group

	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	chatProvider  llm.ChatProvider
	indexer       *Indexer
	pool          *pool.Pool
	metrics       *metrics.Metrics
	config        *SessionManagerConfig
}

// NewSessionManager 创建会话管理器。
func NewSessionManager(
	vectorStore store.VectorStore,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
	workerPool *pool.Pool,
	m *metrics.Metrics,
	config *SessionManagerConfig,
) *SessionManager {
	if config.TopK <= 0 {
		config.TopK = 4
	}
	if m == nil {
		m = metrics.Get()
	}

	splitter := NewSentenceSplitter(config.SplitterConfig)
	indexer := NewIndexer(vectorStore, embedProvider, splitter, &IndexerConfig{
		Collection:     config.Collection,
		EmbedBatchSize: config.EmbedBatchSize,
	})

	return &SessionManager{
		byHash:        make(map[string]*Session),
		byID:          make(map[string]*Session),
		store:         vectorStore,
		embedProvider: embedProvider,
		chatProvider:  chatProvider,
		indexer:       indexer,
		pool:          workerPool,
		metrics:       m,
		config:        config,
	}
}

// buildResult singleflight 构建结果。
type buildResult struct {
	session *Session
	created bool
}

// GetOrCreate 返回内容哈希对应的会话，不存在时构建。
// 返回值 reused 表示命中了已存在的会话。
func (m *SessionManager) GetOrCreate(ctx context.Context, filename string, data []byte) (*Session, bool, error) {
	hash := textutil.HashBytes(data)

	m.mu.RLock()
	session, ok := m.byHash[hash]
	m.mu.RUnlock()
	if ok {
		logger.Infow("会话复用",
			"document_id", session.Document.ID,
			"hash", textutil.TruncateString(hash, 12),
		)
		return session, true, nil
	}

	// 并发上传相同内容只构建一次
	v, err, _ := m.sf.Do(hash, func() (interface{}, error) {
		m.mu.RLock()
		existing, ok := m.byHash[hash]
		m.mu.RUnlock()
		if ok {
			return &buildResult{session: existing}, nil
		}

		built, buildErr := m.build(ctx, filename, hash, data)
		if buildErr != nil {
			return nil, buildErr
		}
		return &buildResult{session: built, created: true}, nil
	})
	if err != nil {
		return nil, false, err
	}

	result := v.(*buildResult)
	return result.session, !result.created, nil
}

// build 构建新会话：临时文件、文本提取、索引、引擎与路由。
func (m *SessionManager) build(ctx context.Context, filename, hash string, data []byte) (*Session, error) {
	// 上传内容落盘为临时文件，提取完成后删除
	path, cleanup, err := docutil.WriteTemp(bytes.NewReader(data), "insight-pdf-*.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	pages, err := docutil.ExtractPDFPages(path)
	if err != nil {
		return nil, fmt.Errorf("提取 PDF 文本失败: %w", err)
	}

	doc := &model.Document{
		ID:        id.NewULID(),
		Filename:  filename,
		Hash:      hash,
		SizeBytes: int64(len(data)),
		CreatedAt: time.Now(),
	}

	chunks, err := m.indexer.IndexPages(ctx, doc, pages)
	if err != nil {
		// 清理可能已写入的部分分块
		if delErr := m.store.DeleteByDocument(ctx, m.config.Collection, doc.ID); delErr != nil {
			logger.Warnw("清理失败索引的分块失败", "document_id", doc.ID, "error", delErr.Error())
		}
		return nil, err
	}

	doc.ChunkNum = len(chunks)
	for _, page := range pages {
		doc.CharNum += utf8.RuneCountInString(page.Text)
	}

	router, err := m.buildRouter(doc, chunks)
	if err != nil {
		return nil, err
	}

	session := &Session{
		Document: doc,
		Chunks:   chunks,
		Router:   router,
	}

	m.mu.Lock()
	m.byHash[hash] = session
	m.byID[doc.ID] = session
	m.mu.Unlock()

	m.metrics.RecordIndexing(1, len(chunks))
	logger.Infow("会话构建完成",
		"document_id", doc.ID,
		"document_name", doc.Filename,
		"chunks", len(chunks),
		"chars", doc.CharNum,
	)

	return session, nil
}

// buildRouter 构建会话的工具与路由引擎。
func (m *SessionManager) buildRouter(doc *model.Document, chunks []string) (*RouterQueryEngine, error) {
	summaryEngine := NewSummaryQueryEngine(m.chatProvider, chunks, m.pool, &SummaryEngineConfig{
		BatchSize: m.config.SummaryBatchSize,
	})
	vectorEngine := NewVectorQueryEngine(m.store, m.embedProvider, m.chatProvider, doc.ID, doc.Filename, &VectorEngineConfig{
		Collection: m.config.Collection,
		TopK:       m.config.TopK,
	})

	tools := []Tool{
		{Metadata: ToolMetadata{Name: ToolSummary, Description: summaryToolDescription}, Engine: summaryEngine},
		{Metadata: ToolMetadata{Name: ToolVector, Description: vectorToolDescription}, Engine: vectorEngine},
	}

	// 解析失败时回退到向量工具
	selector := NewLLMSingleSelector(m.chatProvider, 1)

	return NewRouterQueryEngine(tools, selector, m.metrics)
}

// Get 按文档 ID 查找会话。
func (m *SessionManager) Get(documentID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.byID[documentID]
	return session, ok
}

// List 返回所有会话，按创建时间升序。
func (m *SessionManager) List() []*Session {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.byID))
	for _, session := range m.byID {
		sessions = append(sessions, session)
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Document.CreatedAt.Before(sessions[j].Document.CreatedAt)
	})
	return sessions
}

// Count 返回会话数量。
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Delete 删除会话及其在向量存储中的分块。
func (m *SessionManager) Delete(ctx context.Context, documentID string) error {
	m.mu.Lock()
	session, ok := m.byID[documentID]
	if !ok {
		m.mu.Unlock()
		return ErrDocumentNotFound
	}
	delete(m.byID, documentID)
	delete(m.byHash, session.Document.Hash)
	m.mu.Unlock()

	if err := m.store.DeleteByDocument(ctx, m.config.Collection, documentID); err != nil {
		return fmt.Errorf("删除文档分块失败: %w", err)
	}

	logger.Infow("会话已删除", "document_id", documentID, "document_name", session.Document.Filename)
	return nil
}
