package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kart-io/insight-pdf/pkg/llm"
)

func newTestProvider(baseURL string) *Provider {
	return NewProviderWithConfig(&Config{
		BaseURL:    baseURL,
		EmbedModel: "nomic-embed-text",
		ChatModel:  "llama3.1:8b",
		Timeout:    5 * time.Second,
		MaxRetries: 1,
	})
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model": "nomic-embed-text", "embeddings": [[0.1, 0.2], [0.3, 0.4]]}`))
	}))
	defer srv.Close()

	provider := newTestProvider(srv.URL)
	embeddings, err := provider.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(embeddings))
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	provider := newTestProvider("http://localhost:1")
	embeddings, err := provider.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if embeddings != nil {
		t.Errorf("expected nil embeddings for empty input, got %v", embeddings)
	}
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model": "llama3.1:8b", "message": {"role": "assistant", "content": "pong"}, "done": true}`))
	}))
	defer srv.Close()

	provider := newTestProvider(srv.URL)
	resp, err := provider.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "ping"}})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp != "pong" {
		t.Errorf("expected 'pong', got %q", resp)
	}
}

func TestGenerateTokenUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model": "llama3.1:8b", "response": "generated", "done": true, "prompt_eval_count": 10, "eval_count": 4}`))
	}))
	defer srv.Close()

	provider := newTestProvider(srv.URL)
	resp, err := provider.Generate(context.Background(), "prompt", "system")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Content != "generated" {
		t.Errorf("expected 'generated', got %q", resp.Content)
	}
	if resp.TokenUsage == nil || resp.TokenUsage.TotalTokens != 14 {
		t.Errorf("unexpected token usage: %+v", resp.TokenUsage)
	}
}
