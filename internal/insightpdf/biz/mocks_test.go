package biz

import (
	"context"
	"sync/atomic"

	"github.com/kart-io/insight-pdf/pkg/llm"
)

// mockChatProvider 可编程的 Chat 供应商，用于测试。
type mockChatProvider struct {
	generateFunc func(ctx context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error)
	calls        atomic.Int64
}

func (m *mockChatProvider) Generate(ctx context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error) {
	m.calls.Add(1)
	return m.generateFunc(ctx, prompt, systemPrompt)
}

func (m *mockChatProvider) Chat(_ context.Context, _ []llm.Message) (string, error) {
	return "", nil
}

func (m *mockChatProvider) Name() string { return "mock-chat" }

// staticChat 构造始终返回固定内容的 Chat 供应商。
func staticChat(content string) *mockChatProvider {
	return &mockChatProvider{
		generateFunc: func(_ context.Context, _, _ string) (*llm.GenerateResponse, error) {
			return &llm.GenerateResponse{Content: content}, nil
		},
	}
}

// mockEmbedProvider 返回固定向量的 Embedding 供应商。
type mockEmbedProvider struct {
	embedFunc func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedFunc != nil {
		return m.embedFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (m *mockEmbedProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedProvider) Name() string { return "mock-embed" }

// mockEngine 记录调用次数并返回固定应答的查询引擎。
type mockEngine struct {
	answer string
	err    error
	calls  atomic.Int64
}

func (m *mockEngine) Query(_ context.Context, _ string) (*EngineResponse, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return &EngineResponse{Answer: m.answer}, nil
}
