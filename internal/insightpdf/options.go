// Package insightpdf provides the InsightPDF application.
package insightpdf

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	httpopts "github.com/kart-io/insight-pdf/pkg/options/http"
	logopts "github.com/kart-io/insight-pdf/pkg/options/logger"
	milvusopts "github.com/kart-io/insight-pdf/pkg/options/milvus"
	redisopts "github.com/kart-io/insight-pdf/pkg/options/redis"
)

// 支持的向量存储驱动。
const (
	StoreDriverMilvus = "milvus"
	StoreDriverMemory = "memory"
)

// Options contains all InsightPDF service options.
type Options struct {
	// HTTP contains HTTP server configuration.
	HTTP *httpopts.Options `json:"http" mapstructure:"http"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Milvus contains Milvus database configuration.
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Embedding contains embedding provider configuration.
	Embedding *LLMProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Chat contains chat provider configuration.
	Chat *LLMProviderOptions `json:"chat" mapstructure:"chat"`

	// Insight contains indexing and query configuration.
	Insight *InsightOptions `json:"insight" mapstructure:"insight"`

	// Cache contains answer cache configuration.
	Cache *CacheOptions `json:"cache" mapstructure:"cache"`
}

// LLMProviderOptions 定义 LLM 供应商配置。
type LLMProviderOptions struct {
	// Provider 供应商名称（ollama, openai 等）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥（OpenAI 等需要）。
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`
}

// NewLLMProviderOptions 创建默认 LLM 供应商配置。
func NewLLMProviderOptions() *LLMProviderOptions {
	return &LLMProviderOptions{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *LLMProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
}

// InsightOptions contains indexing and query configuration.
type InsightOptions struct {
	// StoreDriver 向量存储驱动（milvus 或 memory）。
	StoreDriver string `json:"store-driver" mapstructure:"store-driver"`

	// Collection 向量集合名称。
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim 嵌入向量维度。
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// ChunkSize 分块大小（rune 数）。
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap 相邻分块重叠（rune 数）。
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// MinChunkLen 丢弃短于此长度的分块。
	MinChunkLen int `json:"min-chunk-len" mapstructure:"min-chunk-len"`

	// TopK 向量检索返回的最大块数。
	TopK int `json:"top-k" mapstructure:"top-k"`

	// SummaryBatchSize 摘要归约每批分块数。
	SummaryBatchSize int `json:"summary-batch-size" mapstructure:"summary-batch-size"`

	// EmbedBatchSize 索引时每次嵌入调用的分块数。
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`

	// QueryTimeout 单次问答的最长处理时间。
	QueryTimeout time.Duration `json:"query-timeout" mapstructure:"query-timeout"`
}

// NewInsightOptions 创建默认索引与查询配置。
func NewInsightOptions() *InsightOptions {
	return &InsightOptions{
		StoreDriver:      StoreDriverMilvus,
		Collection:       "insightpdf_chunks",
		EmbeddingDim:     768, // nomic-embed-text dimension
		ChunkSize:        1024,
		ChunkOverlap:     200,
		MinChunkLen:      20,
		TopK:             4,
		SummaryBatchSize: 5,
		EmbedBatchSize:   32,
		QueryTimeout:     60 * time.Second,
	}
}

// CacheOptions 答案缓存配置。
type CacheOptions struct {
	// Enabled 是否启用缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL 缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix 缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// Redis Redis 连接配置。
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewCacheOptions 创建默认缓存配置。
func NewCacheOptions() *CacheOptions {
	return &CacheOptions{
		Enabled:   false,
		TTL:       1 * time.Hour,
		KeyPrefix: "insightpdf:answer:",
		Redis:     redisopts.NewOptions(),
	}
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	// 默认 embedding 配置
	embeddingOpts := NewLLMProviderOptions()
	embeddingOpts.Model = "nomic-embed-text"

	// 默认 chat 配置
	chatOpts := NewLLMProviderOptions()
	chatOpts.Model = "qwen2.5:7b"

	return &Options{
		HTTP:      httpopts.NewOptions(),
		Log:       logopts.NewOptions(),
		Milvus:    milvusopts.NewOptions(),
		Embedding: embeddingOpts,
		Chat:      chatOpts,
		Insight:   NewInsightOptions(),
		Cache:     NewCacheOptions(),
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.HTTP.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.addProviderFlags(fs, "embedding", o.Embedding)
	o.addProviderFlags(fs, "chat", o.Chat)
	o.addInsightFlags(fs)
	o.addCacheFlags(fs)
}

func (o *Options) addProviderFlags(fs *pflag.FlagSet, prefix string, opts *LLMProviderOptions) {
	fs.StringVar(&opts.Provider, prefix+".provider", opts.Provider, "LLM provider (ollama, openai)")
	fs.StringVar(&opts.BaseURL, prefix+".base-url", opts.BaseURL, "LLM API base URL")
	fs.StringVar(&opts.APIKey, prefix+".api-key", opts.APIKey, "LLM API key (for OpenAI)")
	fs.StringVar(&opts.Model, prefix+".model", opts.Model, "Model name")
	fs.DurationVar(&opts.Timeout, prefix+".timeout", opts.Timeout, "Request timeout")
	fs.IntVar(&opts.MaxRetries, prefix+".max-retries", opts.MaxRetries, "Max retries")
}

func (o *Options) addInsightFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Insight.StoreDriver, "insight.store-driver", o.Insight.StoreDriver, "Vector store driver (milvus, memory)")
	fs.StringVar(&o.Insight.Collection, "insight.collection", o.Insight.Collection, "Vector collection name")
	fs.IntVar(&o.Insight.EmbeddingDim, "insight.embedding-dim", o.Insight.EmbeddingDim, "Embedding vector dimension")
	fs.IntVar(&o.Insight.ChunkSize, "insight.chunk-size", o.Insight.ChunkSize, "Size of text chunks in runes")
	fs.IntVar(&o.Insight.ChunkOverlap, "insight.chunk-overlap", o.Insight.ChunkOverlap, "Overlap between chunks in runes")
	fs.IntVar(&o.Insight.MinChunkLen, "insight.min-chunk-len", o.Insight.MinChunkLen, "Minimum chunk length in runes")
	fs.IntVar(&o.Insight.TopK, "insight.top-k", o.Insight.TopK, "Number of results from similarity search")
	fs.IntVar(&o.Insight.SummaryBatchSize, "insight.summary-batch-size", o.Insight.SummaryBatchSize, "Chunks per summary reduction batch")
	fs.IntVar(&o.Insight.EmbedBatchSize, "insight.embed-batch-size", o.Insight.EmbedBatchSize, "Chunks per embedding request")
	fs.DurationVar(&o.Insight.QueryTimeout, "insight.query-timeout", o.Insight.QueryTimeout, "Per-request query timeout")
}

func (o *Options) addCacheFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Cache.Enabled, "cache.enabled", o.Cache.Enabled, "Enable answer cache")
	fs.DurationVar(&o.Cache.TTL, "cache.ttl", o.Cache.TTL, "Cache TTL duration")
	fs.StringVar(&o.Cache.KeyPrefix, "cache.key-prefix", o.Cache.KeyPrefix, "Cache key prefix")
	o.Cache.Redis.AddFlags(fs)
}

// Validate validates the options.
func (o *Options) Validate() error {
	if err := o.Log.Validate(); err != nil {
		return err
	}
	if err := o.HTTP.Validate(); err != nil {
		return err
	}

	switch o.Insight.StoreDriver {
	case StoreDriverMilvus:
		if errs := o.Milvus.Validate(); len(errs) > 0 {
			return errs[0]
		}
	case StoreDriverMemory:
		// memory 驱动不需要 Milvus 配置
	default:
		return fmt.Errorf("insight.store-driver must be %q or %q", StoreDriverMilvus, StoreDriverMemory)
	}

	if err := o.validateLLMProvider(o.Embedding, "embedding"); err != nil {
		return err
	}
	if err := o.validateLLMProvider(o.Chat, "chat"); err != nil {
		return err
	}

	if o.Insight.ChunkSize <= 0 {
		return fmt.Errorf("insight.chunk-size must be positive")
	}
	if o.Insight.ChunkOverlap < 0 || o.Insight.ChunkOverlap >= o.Insight.ChunkSize {
		return fmt.Errorf("insight.chunk-overlap must be in [0, chunk-size)")
	}
	if o.Insight.TopK <= 0 {
		return fmt.Errorf("insight.top-k must be positive")
	}
	if o.Insight.EmbeddingDim <= 0 {
		return fmt.Errorf("insight.embedding-dim must be positive")
	}
	if o.Insight.QueryTimeout <= 0 {
		return fmt.Errorf("insight.query-timeout must be positive")
	}

	if o.Cache.Enabled {
		if err := o.Cache.Redis.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (o *Options) validateLLMProvider(opts *LLMProviderOptions, prefix string) error {
	if opts.Provider == "" {
		return fmt.Errorf("%s.provider is required", prefix)
	}
	if opts.BaseURL == "" {
		return fmt.Errorf("%s.base-url is required", prefix)
	}
	if opts.Model == "" {
		return fmt.Errorf("%s.model is required", prefix)
	}
	// OpenAI 供应商需要 API key
	if opts.Provider == "openai" && opts.APIKey == "" {
		return fmt.Errorf("%s.api-key is required for openai provider", prefix)
	}
	if opts.Timeout <= 0 {
		return fmt.Errorf("%s.timeout must be positive", prefix)
	}
	return nil
}

// Complete completes the options.
func (o *Options) Complete() error {
	return o.HTTP.Complete()
}
