package biz

import (
	"context"
	"testing"

	"github.com/kart-io/insight-pdf/internal/insightpdf/metrics"
	"github.com/kart-io/insight-pdf/internal/insightpdf/store"
	"github.com/kart-io/insight-pdf/internal/pkg/textutil"
)

func newTestSessionManager(t *testing.T) (*SessionManager, *store.MemoryStore) {
	t.Helper()

	memStore := store.NewMemoryStore()
	if err := memStore.EnsureCollection(context.Background(), &store.CollectionConfig{Name: testCollection, Dimension: 3}); err != nil {
		t.Fatalf("创建集合失败: %v", err)
	}

	manager := NewSessionManager(memStore, &mockEmbedProvider{}, staticChat("x"), nil, metrics.NewMetrics(), &SessionManagerConfig{
		Collection: testCollection,
	})
	return manager, memStore
}

func TestSessionManager_GetOrCreateReusesByHash(t *testing.T) {
	manager, _ := newTestSessionManager(t)

	data := []byte("%PDF-1.4 fake content")
	hash := textutil.HashBytes(data)
	injected := injectSession(t, manager, "doc-1", hash, "answer")

	// 相同内容的重复上传命中已有会话，不走构建流程
	session, reused, err := manager.GetOrCreate(context.Background(), "renamed.pdf", data)
	if err != nil {
		t.Fatalf("GetOrCreate 失败: %v", err)
	}
	if !reused {
		t.Error("相同内容应复用会话")
	}
	if session != injected {
		t.Error("应返回已存在的会话实例")
	}
	// 复用时保留首次上传的文件名
	if session.Document.Filename != "report.pdf" {
		t.Errorf("复用会话的文件名不符: %q", session.Document.Filename)
	}
}

func TestSessionManager_GetAndCount(t *testing.T) {
	manager, _ := newTestSessionManager(t)

	if manager.Count() != 0 {
		t.Errorf("初始会话数应为 0，实际 %d", manager.Count())
	}
	if _, ok := manager.Get("doc-1"); ok {
		t.Error("不存在的会话不应命中")
	}

	injectSession(t, manager, "doc-1", "hash-1", "answer")

	if manager.Count() != 1 {
		t.Errorf("会话数应为 1，实际 %d", manager.Count())
	}
	session, ok := manager.Get("doc-1")
	if !ok || session.Document.ID != "doc-1" {
		t.Error("应能按 ID 查到会话")
	}
}

func TestSessionManager_ListOrderedByCreatedAt(t *testing.T) {
	manager, _ := newTestSessionManager(t)

	first := injectSession(t, manager, "doc-1", "hash-1", "a")
	second := injectSession(t, manager, "doc-2", "hash-2", "b")
	// injectSession 按调用顺序设置 CreatedAt
	second.Document.CreatedAt = first.Document.CreatedAt.Add(1)

	sessions := manager.List()
	if len(sessions) != 2 {
		t.Fatalf("期望 2 个会话，实际 %d", len(sessions))
	}
	if sessions[0].Document.ID != "doc-1" || sessions[1].Document.ID != "doc-2" {
		t.Errorf("会话应按创建时间升序: %s, %s", sessions[0].Document.ID, sessions[1].Document.ID)
	}
}

func TestSessionManager_DeleteRemovesVectors(t *testing.T) {
	manager, memStore := newTestSessionManager(t)
	ctx := context.Background()

	injectSession(t, manager, "doc-1", "hash-1", "answer")
	if _, err := memStore.Insert(ctx, testCollection, []*store.Chunk{
		{DocumentID: "doc-1", Content: "chunk", Embedding: []float32{1, 0, 0}},
	}); err != nil {
		t.Fatalf("插入分块失败: %v", err)
	}

	if err := manager.Delete(ctx, "doc-1"); err != nil {
		t.Fatalf("Delete 失败: %v", err)
	}

	if _, ok := manager.Get("doc-1"); ok {
		t.Error("删除后会话不应存在")
	}
	count, err := memStore.GetStats(ctx, testCollection)
	if err != nil {
		t.Fatalf("GetStats 失败: %v", err)
	}
	if count != 0 {
		t.Errorf("删除后向量存储中不应残留分块，实际 %d", count)
	}

	// 删除后哈希也被移除，相同内容可以重新构建
	if manager.Count() != 0 {
		t.Errorf("会话数应为 0，实际 %d", manager.Count())
	}
}
