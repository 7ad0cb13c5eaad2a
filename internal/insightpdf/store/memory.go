package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kart-io/insight-pdf/internal/pkg/textutil"
)

// MemoryStore 实现基于内存的向量存储，用于测试和无 Milvus 的本地开发。
// 检索使用暴力余弦相似度，数据不持久化。
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]*Chunk
	nextID      int64
}

// 确保 MemoryStore 实现了 VectorStore 接口。
var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储实例。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]*Chunk),
	}
}

// EnsureCollection 创建集合（如果不存在）。
func (s *MemoryStore) EnsureCollection(_ context.Context, config *CollectionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[config.Name]; !ok {
		s.collections[config.Name] = nil
	}
	return nil
}

// Insert 批量插入文档块。
func (s *MemoryStore) Insert(_ context.Context, collection string, chunks []*Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection]; !ok {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}

	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		s.nextID++
		stored := *chunk
		stored.ID = fmt.Sprintf("%d", s.nextID)
		s.collections[collection] = append(s.collections[collection], &stored)
		ids[i] = stored.ID
	}

	return ids, nil
}

// Search 执行暴力余弦相似度搜索。
func (s *MemoryStore) Search(_ context.Context, collection string, embedding []float32, topK int, documentID string) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}

	results := make([]*SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		if documentID != "" && chunk.DocumentID != documentID {
			continue
		}
		score := textutil.CosineSimilarity(embedding, chunk.Embedding)
		results = append(results, &SearchResult{
			ID:           chunk.ID,
			DocumentID:   chunk.DocumentID,
			DocumentName: chunk.DocumentName,
			Page:         chunk.Page,
			Content:      chunk.Content,
			Score:        float32(score),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// DeleteByDocument 删除指定文档的所有块。
func (s *MemoryStore) DeleteByDocument(_ context.Context, collection string, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunks, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("collection %s does not exist", collection)
	}

	kept := chunks[:0]
	for _, chunk := range chunks {
		if chunk.DocumentID != documentID {
			kept = append(kept, chunk)
		}
	}
	s.collections[collection] = kept

	return nil
}

// GetStats 返回集合中的块数量。
func (s *MemoryStore) GetStats(_ context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("collection %s does not exist", collection)
	}
	return int64(len(chunks)), nil
}

// Close 清空所有集合。
func (s *MemoryStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collections = make(map[string][]*Chunk)
	return nil
}
