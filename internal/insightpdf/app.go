package insightpdf

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/insight-pdf/internal/insightpdf/biz"
	"github.com/kart-io/insight-pdf/internal/insightpdf/handler"
	"github.com/kart-io/insight-pdf/internal/insightpdf/metrics"
	"github.com/kart-io/insight-pdf/internal/insightpdf/router"
	"github.com/kart-io/insight-pdf/internal/insightpdf/store"
	"github.com/kart-io/insight-pdf/pkg/app"
	"github.com/kart-io/insight-pdf/pkg/component/milvus"
	"github.com/kart-io/insight-pdf/pkg/component/redis"
	"github.com/kart-io/insight-pdf/pkg/infra/pool"
	"github.com/kart-io/insight-pdf/pkg/llm"
	httpserver "github.com/kart-io/insight-pdf/pkg/server/http"

	// Register LLM providers
	_ "github.com/kart-io/insight-pdf/pkg/llm/ollama"
	_ "github.com/kart-io/insight-pdf/pkg/llm/openai"
)

const (
	appName        = "insight-pdf"
	appDescription = `InsightPDF Service

Upload a PDF and ask questions about it.

This server provides:
  - PDF upload with page-aware text extraction and vector indexing
  - Per-document sessions with content-hash deduplication
  - LLM-routed question answering (summary vs. semantic search)`
)

// NewApp creates a new application instance.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(appName),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return Run(opts)
		}),
	)
}

// Run runs the InsightPDF service with the given options.
func Run(opts *Options) error {
	ctx := context.Background()

	// 1. 初始化日志
	opts.Log.AddInitialField("service.name", appName)
	opts.Log.AddInitialField("service.version", app.GetVersion())
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting InsightPDF service...")

	// 2. 初始化向量存储
	vectorStore, err := newVectorStore(opts)
	if err != nil {
		return err
	}
	defer vectorStore.Close(ctx)

	if err := vectorStore.EnsureCollection(ctx, &store.CollectionConfig{
		Name:        opts.Insight.Collection,
		Description: "InsightPDF document chunks",
		Dimension:   opts.Insight.EmbeddingDim,
	}); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}
	logger.Infow("Vector store initialized",
		"driver", opts.Insight.StoreDriver,
		"collection", opts.Insight.Collection,
	)

	// 3. 初始化 LLM 供应商
	embedProvider, err := llm.NewEmbeddingProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	chatProvider, err := llm.NewChatProvider(opts.Chat.Provider, opts.Chat.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("LLM providers initialized",
		"embedding", embedProvider.Name(),
		"chat", chatProvider.Name(),
	)

	// 4. 初始化摘要任务池
	summaryPool, err := pool.New("summary", pool.SummaryConfig())
	if err != nil {
		return fmt.Errorf("failed to create summary pool: %w", err)
	}
	defer summaryPool.Release()

	// 5. 初始化会话管理器
	m := metrics.Get()
	sessions := biz.NewSessionManager(vectorStore, embedProvider, chatProvider, summaryPool, m, &biz.SessionManagerConfig{
		Collection:       opts.Insight.Collection,
		TopK:             opts.Insight.TopK,
		SummaryBatchSize: opts.Insight.SummaryBatchSize,
		EmbedBatchSize:   opts.Insight.EmbedBatchSize,
		SplitterConfig: &biz.SplitterConfig{
			ChunkSize:    opts.Insight.ChunkSize,
			ChunkOverlap: opts.Insight.ChunkOverlap,
			MinChunkLen:  opts.Insight.MinChunkLen,
		},
	})

	// 6. 初始化答案缓存（可选）
	answerCache, err := newAnswerCache(opts)
	if err != nil {
		return err
	}

	// 7. 初始化 Service 与 Handler 层
	service := biz.NewInsightService(sessions, answerCache, vectorStore, opts.Insight.Collection, m,
		embedProvider.Name(), chatProvider.Name())

	docHandler := handler.NewDocumentHandler(service, opts.HTTP.MaxUploadSize)
	queryHandler := handler.NewQueryHandler(service, opts.Insight.QueryTimeout)
	statsHandler := handler.NewStatsHandler(service, m)

	// 8. 启动 HTTP 服务器
	server := httpserver.New(opts.HTTP, func(engine *gin.Engine) {
		router.Register(engine, docHandler, queryHandler, statsHandler)
	})

	logger.Info("InsightPDF service is ready")
	return server.Run()
}

// newVectorStore 根据配置的驱动创建向量存储。
func newVectorStore(opts *Options) (store.VectorStore, error) {
	switch opts.Insight.StoreDriver {
	case StoreDriverMemory:
		logger.Warn("Using in-memory vector store, data will not be persisted")
		return store.NewMemoryStore(), nil
	default:
		client, err := milvus.New(opts.Milvus)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		return store.NewMilvusStore(client), nil
	}
}

// newAnswerCache 创建答案缓存，未启用时返回 nil。
func newAnswerCache(opts *Options) (*biz.AnswerCache, error) {
	if !opts.Cache.Enabled {
		logger.Info("Answer cache disabled")
		return nil, nil
	}

	redisClient, err := redis.New(opts.Cache.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	logger.Infow("Answer cache enabled",
		"addr", opts.Cache.Redis.Addr(),
		"ttl", opts.Cache.TTL.String(),
	)
	return biz.NewAnswerCache(redisClient.Client(), &biz.AnswerCacheConfig{
		Enabled:   true,
		TTL:       opts.Cache.TTL,
		KeyPrefix: opts.Cache.KeyPrefix,
	}), nil
}
