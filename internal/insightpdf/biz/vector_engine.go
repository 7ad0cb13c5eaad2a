package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/insight-pdf/internal/insightpdf/store"
	"github.com/kart-io/insight-pdf/internal/model"
	"github.com/kart-io/insight-pdf/pkg/llm"
)

// vectorAnswerPrompt 向量引擎的答案合成提示词模板。
const vectorAnswerPrompt = `You are a helpful assistant answering questions about an uploaded PDF document.
Answer the question using ONLY the context passages below. If the context does
not contain the answer, say so.

Context:
{{context}}

Question: {{question}}

Answer:`

// VectorEngineConfig 向量查询引擎配置。
type VectorEngineConfig struct {
	// Collection 向量集合名称。
	Collection string
	// TopK 检索返回的最大块数。
	TopK int
}

// VectorQueryEngine 针对单个文档的向量检索问答引擎。
// 问题被嵌入后在文档的块中做相似度检索，检索结果作为上下文交给
// Chat 供应商合成答案。
type VectorQueryEngine struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	chatProvider  llm.ChatProvider
	documentID    string
	documentName  string
	config        *VectorEngineConfig
}

var _ QueryEngine = (*VectorQueryEngine)(nil)

// NewVectorQueryEngine 创建向量查询引擎。
func NewVectorQueryEngine(
	vectorStore store.VectorStore,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
	documentID, documentName string,
	config *VectorEngineConfig,
) *VectorQueryEngine {
	if config.TopK <= 0 {
		config.TopK = 4
	}
	return &VectorQueryEngine{
		store:         vectorStore,
		embedProvider: embedProvider,
		chatProvider:  chatProvider,
		documentID:    documentID,
		documentName:  documentName,
		config:        config,
	}
}

// Query 执行向量检索并合成答案。
func (e *VectorQueryEngine) Query(ctx context.Context, question string) (*EngineResponse, error) {
	embedding, err := e.embedProvider.EmbedSingle(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("嵌入问题失败: %w", err)
	}

	results, err := e.store.Search(ctx, e.config.Collection, embedding, e.config.TopK, e.documentID)
	if err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}

	if len(results) == 0 {
		logger.Warnw("向量检索无结果", "document_id", e.documentID, "question", question)
		return &EngineResponse{
			Answer:  "I couldn't find any relevant passages in the document.",
			Sources: []model.ChunkSource{},
		}, nil
	}

	// 构建上下文与来源
	var contextBuilder strings.Builder
	sources := make([]model.ChunkSource, len(results))
	for i, result := range results {
		fmt.Fprintf(&contextBuilder, "[%d] From %s (page %d):\n%s\n\n", i+1, result.DocumentName, result.Page, result.Content)
		sources[i] = model.ChunkSource{
			DocumentID:   result.DocumentID,
			DocumentName: result.DocumentName,
			Page:         result.Page,
			Content:      result.Content,
			Score:        result.Score,
		}
	}

	prompt := strings.ReplaceAll(vectorAnswerPrompt, "{{context}}", contextBuilder.String())
	prompt = strings.ReplaceAll(prompt, "{{question}}", question)

	resp, err := e.chatProvider.Generate(ctx, prompt, "")
	if err != nil {
		return nil, fmt.Errorf("生成答案失败: %w", err)
	}

	return &EngineResponse{
		Answer:     strings.TrimSpace(resp.Content),
		Sources:    sources,
		TokenUsage: resp.TokenUsage,
	}, nil
}
