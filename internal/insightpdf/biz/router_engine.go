package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/insight-pdf/internal/insightpdf/metrics"
	"github.com/kart-io/insight-pdf/internal/model"
)

// RouterQueryEngine 将问题路由到最合适的查询工具。
// 选择器给出决策，被选中的引擎生成答案，路由信息附在结果上。
type RouterQueryEngine struct {
	tools    []Tool
	selector Selector
	metrics  *metrics.Metrics
}

// NewRouterQueryEngine 创建路由查询引擎。
func NewRouterQueryEngine(tools []Tool, selector Selector, m *metrics.Metrics) (*RouterQueryEngine, error) {
	if len(tools) == 0 {
		return nil, fmt.Errorf("路由引擎至少需要一个工具")
	}
	if selector == nil {
		return nil, fmt.Errorf("路由引擎需要选择器")
	}
	if m == nil {
		m = metrics.Get()
	}
	return &RouterQueryEngine{
		tools:    tools,
		selector: selector,
		metrics:  m,
	}, nil
}

// Tools 返回已注册工具的元数据。
func (r *RouterQueryEngine) Tools() []ToolMetadata {
	metas := make([]ToolMetadata, len(r.tools))
	for i, tool := range r.tools {
		metas[i] = tool.Metadata
	}
	return metas
}

// Query 选择工具并生成答案，返回应答和路由决策。
func (r *RouterQueryEngine) Query(ctx context.Context, question string) (*EngineResponse, *model.RouteDecision, error) {
	selection, err := r.selector.Select(ctx, question, r.Tools())
	if err != nil {
		return nil, nil, fmt.Errorf("工具选择失败: %w", err)
	}

	tool := r.tools[selection.Index]
	logger.Infow("路由决策",
		"tool", tool.Metadata.Name,
		"reason", selection.Reason,
		"fallback", selection.Fallback,
		"question", question,
	)
	r.metrics.RecordRoute(tool.Metadata.Name, selection.Fallback)

	resp, err := tool.Engine.Query(ctx, question)
	if err != nil {
		return nil, nil, fmt.Errorf("引擎 %s 查询失败: %w", tool.Metadata.Name, err)
	}

	resp.TokenUsage = addUsage(resp.TokenUsage, selection.TokenUsage)

	route := &model.RouteDecision{
		Tool:     tool.Metadata.Name,
		Reason:   selection.Reason,
		Fallback: selection.Fallback,
	}

	return resp, route, nil
}
