package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/insight-pdf/internal/insightpdf/store"
	"github.com/kart-io/insight-pdf/internal/model"
	"github.com/kart-io/insight-pdf/internal/pkg/docutil"
	"github.com/kart-io/insight-pdf/internal/pkg/textutil"
	"github.com/kart-io/insight-pdf/pkg/llm"
)

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	// Collection 向量集合名称。
	Collection string
	// EmbedBatchSize 每次嵌入调用的最大分块数。
	EmbedBatchSize int
}

// Indexer 将文档页面切块、嵌入并写入向量存储。
type Indexer struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	splitter      *SentenceSplitter
	config        *IndexerConfig
}

// NewIndexer 创建索引器。
func NewIndexer(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, splitter *SentenceSplitter, config *IndexerConfig) *Indexer {
	if config.EmbedBatchSize <= 0 {
		config.EmbedBatchSize = 32
	}
	return &Indexer{
		store:         vectorStore,
		embedProvider: embedProvider,
		splitter:      splitter,
		config:        config,
	}
}

// IndexPages 索引文档的逐页文本，返回按顺序排列的分块内容。
func (ix *Indexer) IndexPages(ctx context.Context, doc *model.Document, pages []docutil.Page) ([]string, error) {
	var chunks []*store.Chunk
	var contents []string

	for _, page := range pages {
		for _, content := range ix.splitter.Split(page.Text) {
			chunks = append(chunks, &store.Chunk{
				DocumentID:   doc.ID,
				DocumentName: doc.Filename,
				Page:         page.Number,
				Content:      textutil.TruncateString(content, 65000),
			})
			contents = append(contents, content)
		}
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("文档切块后没有可索引的内容")
	}

	// 分批嵌入，避免单次请求过大
	for start := 0; start < len(chunks); start += ix.config.EmbedBatchSize {
		end := start + ix.config.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		embeddings, err := ix.embedProvider.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("生成嵌入失败: %w", err)
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("嵌入数量不匹配: 期望 %d，得到 %d", len(batch), len(embeddings))
		}

		for i, embedding := range embeddings {
			batch[i].Embedding = embedding
		}

		if _, err := ix.store.Insert(ctx, ix.config.Collection, batch); err != nil {
			return nil, fmt.Errorf("写入向量存储失败: %w", err)
		}
	}

	logger.Infow("文档索引完成",
		"document_id", doc.ID,
		"document_name", doc.Filename,
		"pages", len(pages),
		"chunks", len(chunks),
	)

	return contents, nil
}
