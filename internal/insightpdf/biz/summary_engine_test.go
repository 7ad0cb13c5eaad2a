package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kart-io/insight-pdf/pkg/infra/pool"
	"github.com/kart-io/insight-pdf/pkg/llm"
)

func TestSummaryQueryEngine_SinglePass(t *testing.T) {
	chat := staticChat("the document is about Go")
	engine := NewSummaryQueryEngine(chat, []string{"chunk a", "chunk b"}, nil, &SummaryEngineConfig{BatchSize: 5})

	resp, err := engine.Query(context.Background(), "这份文档讲了什么")
	if err != nil {
		t.Fatalf("Query 失败: %v", err)
	}
	if resp.Answer != "the document is about Go" {
		t.Errorf("答案不符: %q", resp.Answer)
	}
	// 两个分块在一个批次内，只需一次调用
	if chat.calls.Load() != 1 {
		t.Errorf("期望 1 次 LLM 调用，实际 %d", chat.calls.Load())
	}
}

func TestSummaryQueryEngine_MultiPassReduction(t *testing.T) {
	chat := staticChat("partial answer")
	chunks := make([]string, 7)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk %d", i)
	}
	engine := NewSummaryQueryEngine(chat, chunks, nil, &SummaryEngineConfig{BatchSize: 2})

	resp, err := engine.Query(context.Background(), "summarize")
	if err != nil {
		t.Fatalf("Query 失败: %v", err)
	}
	if resp.Answer != "partial answer" {
		t.Errorf("答案不符: %q", resp.Answer)
	}
	// 7 -> 4 -> 2 -> 1，共 4+2+1 = 7 次调用
	if chat.calls.Load() != 7 {
		t.Errorf("期望 7 次 LLM 调用，实际 %d", chat.calls.Load())
	}
}

func TestSummaryQueryEngine_WithWorkerPool(t *testing.T) {
	workerPool, err := pool.New("summary-test", &pool.Config{Capacity: 4})
	if err != nil {
		t.Fatalf("创建协程池失败: %v", err)
	}
	defer workerPool.Release()

	chat := staticChat("done")
	chunks := make([]string, 10)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk %d", i)
	}
	engine := NewSummaryQueryEngine(chat, chunks, workerPool, &SummaryEngineConfig{BatchSize: 3})

	resp, err := engine.Query(context.Background(), "summarize")
	if err != nil {
		t.Fatalf("Query 失败: %v", err)
	}
	if resp.Answer != "done" {
		t.Errorf("答案不符: %q", resp.Answer)
	}
}

func TestSummaryQueryEngine_LLMError(t *testing.T) {
	chat := &mockChatProvider{
		generateFunc: func(_ context.Context, _, _ string) (*llm.GenerateResponse, error) {
			return nil, errors.New("model overloaded")
		},
	}
	engine := NewSummaryQueryEngine(chat, []string{"a", "b"}, nil, nil)

	if _, err := engine.Query(context.Background(), "summarize"); err == nil {
		t.Error("LLM 错误应向上传递")
	}
}

func TestSummaryQueryEngine_EmptyChunks(t *testing.T) {
	engine := NewSummaryQueryEngine(staticChat("x"), nil, nil, nil)
	if _, err := engine.Query(context.Background(), "summarize"); err == nil {
		t.Error("空分块应返回错误")
	}
}

func TestSummaryQueryEngine_PromptContainsContext(t *testing.T) {
	var captured string
	chat := &mockChatProvider{
		generateFunc: func(_ context.Context, prompt, _ string) (*llm.GenerateResponse, error) {
			captured = prompt
			return &llm.GenerateResponse{Content: "ok"}, nil
		},
	}
	engine := NewSummaryQueryEngine(chat, []string{"alpha", "beta"}, nil, nil)

	if _, err := engine.Query(context.Background(), "what happened"); err != nil {
		t.Fatalf("Query 失败: %v", err)
	}
	if !strings.Contains(captured, "alpha") || !strings.Contains(captured, "beta") {
		t.Error("提示词应包含分块内容")
	}
	if !strings.Contains(captured, "what happened") {
		t.Error("提示词应包含问题")
	}
}

func TestSummaryQueryEngine_UsageAccumulated(t *testing.T) {
	chat := &mockChatProvider{
		generateFunc: func(_ context.Context, _, _ string) (*llm.GenerateResponse, error) {
			return &llm.GenerateResponse{
				Content:    "x",
				TokenUsage: &llm.TokenUsage{PromptTokens: 2, CompletionTokens: 1, TotalTokens: 3},
			}, nil
		},
	}
	// 3 个分块、批大小 2：3 -> 2 -> 1 需要 2+1 = 3 次调用
	engine := NewSummaryQueryEngine(chat, []string{"a", "b", "c"}, nil, &SummaryEngineConfig{BatchSize: 2})

	resp, err := engine.Query(context.Background(), "summarize")
	if err != nil {
		t.Fatalf("Query 失败: %v", err)
	}
	if resp.TokenUsage == nil || resp.TokenUsage.TotalTokens != 9 {
		t.Errorf("期望累计 9 个 token，实际 %+v", resp.TokenUsage)
	}
}

func TestBatchTexts(t *testing.T) {
	batches := batchTexts([]string{"a", "b", "c", "d", "e"}, 2)
	if len(batches) != 3 {
		t.Fatalf("期望 3 个批次，实际 %d", len(batches))
	}
	if len(batches[2]) != 1 || batches[2][0] != "e" {
		t.Errorf("末批内容不符: %v", batches[2])
	}
}
