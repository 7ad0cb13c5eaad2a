package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/kart-io/insight-pdf/internal/insightpdf/metrics"
	"github.com/kart-io/insight-pdf/pkg/llm"
)

// stubSelector 返回预设决策的选择器。
type stubSelector struct {
	selection *Selection
	err       error
}

func (s *stubSelector) Select(_ context.Context, _ string, _ []ToolMetadata) (*Selection, error) {
	return s.selection, s.err
}

func newTestTools(summary, vector *mockEngine) []Tool {
	return []Tool{
		{Metadata: ToolMetadata{Name: ToolSummary, Description: summaryToolDescription}, Engine: summary},
		{Metadata: ToolMetadata{Name: ToolVector, Description: vectorToolDescription}, Engine: vector},
	}
}

func TestRouterQueryEngine_RoutesToSelectedTool(t *testing.T) {
	summary := &mockEngine{answer: "summary answer"}
	vector := &mockEngine{answer: "vector answer"}
	selector := &stubSelector{selection: &Selection{Index: 0, Reason: "summary question"}}

	router, err := NewRouterQueryEngine(newTestTools(summary, vector), selector, metrics.NewMetrics())
	if err != nil {
		t.Fatalf("创建路由引擎失败: %v", err)
	}

	resp, route, err := router.Query(context.Background(), "总结一下")
	if err != nil {
		t.Fatalf("Query 失败: %v", err)
	}
	if resp.Answer != "summary answer" {
		t.Errorf("答案不符: %q", resp.Answer)
	}
	if route.Tool != ToolSummary {
		t.Errorf("路由工具不符: %q", route.Tool)
	}
	if route.Fallback {
		t.Error("正常路由不应标记为回退")
	}
	if summary.calls.Load() != 1 || vector.calls.Load() != 0 {
		t.Errorf("引擎调用次数不符: summary=%d vector=%d", summary.calls.Load(), vector.calls.Load())
	}
}

func TestRouterQueryEngine_FallbackRecorded(t *testing.T) {
	summary := &mockEngine{answer: "s"}
	vector := &mockEngine{answer: "v"}
	selector := &stubSelector{selection: &Selection{Index: 1, Reason: "parse failed", Fallback: true}}

	m := metrics.NewMetrics()
	router, err := NewRouterQueryEngine(newTestTools(summary, vector), selector, m)
	if err != nil {
		t.Fatalf("创建路由引擎失败: %v", err)
	}

	_, route, err := router.Query(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Query 失败: %v", err)
	}
	if !route.Fallback {
		t.Error("回退决策应透传到路由结果")
	}
	if route.Tool != ToolVector {
		t.Errorf("回退应路由到向量工具，实际 %q", route.Tool)
	}
}

func TestRouterQueryEngine_SelectorError(t *testing.T) {
	selector := &stubSelector{err: errors.New("selector broken")}
	router, err := NewRouterQueryEngine(newTestTools(&mockEngine{}, &mockEngine{}), selector, metrics.NewMetrics())
	if err != nil {
		t.Fatalf("创建路由引擎失败: %v", err)
	}

	if _, _, err := router.Query(context.Background(), "anything"); err == nil {
		t.Error("选择器错误应向上传递")
	}
}

func TestRouterQueryEngine_EngineError(t *testing.T) {
	vector := &mockEngine{err: errors.New("search down")}
	selector := &stubSelector{selection: &Selection{Index: 1}}

	router, err := NewRouterQueryEngine(newTestTools(&mockEngine{}, vector), selector, metrics.NewMetrics())
	if err != nil {
		t.Fatalf("创建路由引擎失败: %v", err)
	}

	if _, _, err := router.Query(context.Background(), "anything"); err == nil {
		t.Error("引擎错误应向上传递")
	}
}

func TestRouterQueryEngine_UsageAccumulated(t *testing.T) {
	// 选择器与引擎的 token 消耗应合并
	selector := &stubSelector{selection: &Selection{
		Index:      0,
		TokenUsage: &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
	summary := &mockEngine{answer: "ok"}

	router, err := NewRouterQueryEngine(newTestTools(summary, &mockEngine{}), selector, metrics.NewMetrics())
	if err != nil {
		t.Fatalf("创建路由引擎失败: %v", err)
	}

	resp, _, err := router.Query(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Query 失败: %v", err)
	}
	if resp.TokenUsage == nil || resp.TokenUsage.TotalTokens != 15 {
		t.Errorf("期望合并后的 token 消耗为 15，实际 %+v", resp.TokenUsage)
	}
}

func TestNewRouterQueryEngine_Validation(t *testing.T) {
	if _, err := NewRouterQueryEngine(nil, &stubSelector{}, nil); err == nil {
		t.Error("空工具列表应返回错误")
	}
	if _, err := NewRouterQueryEngine(newTestTools(&mockEngine{}, &mockEngine{}), nil, nil); err == nil {
		t.Error("缺少选择器应返回错误")
	}
}
