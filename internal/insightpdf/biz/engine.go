package biz

import (
	"context"

	"github.com/kart-io/insight-pdf/internal/model"
	"github.com/kart-io/insight-pdf/pkg/llm"
)

// EngineResponse 查询引擎的应答。
type EngineResponse struct {
	// Answer 生成的答案文本。
	Answer string
	// Sources 答案引用的文档块来源，摘要引擎可为空。
	Sources []model.ChunkSource
	// TokenUsage 本次应答累计的 token 消耗，可能为 nil。
	TokenUsage *llm.TokenUsage
}

// QueryEngine 定义查询引擎接口。
type QueryEngine interface {
	// Query 回答针对单个文档的问题。
	Query(ctx context.Context, question string) (*EngineResponse, error)
}

// ToolMetadata 工具的名称和自然语言描述，供选择器参考。
type ToolMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Tool 将查询引擎与元数据绑定为可路由的工具。
type Tool struct {
	Metadata ToolMetadata
	Engine   QueryEngine
}

// addUsage 累加 token 用量，nil 安全。
func addUsage(total *llm.TokenUsage, delta *llm.TokenUsage) *llm.TokenUsage {
	if delta == nil {
		return total
	}
	if total == nil {
		total = &llm.TokenUsage{}
	}
	total.PromptTokens += delta.PromptTokens
	total.CompletionTokens += delta.CompletionTokens
	total.TotalTokens += delta.TotalTokens
	return total
}
