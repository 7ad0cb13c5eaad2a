package biz

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kart-io/insight-pdf/internal/insightpdf/store"
	"github.com/kart-io/insight-pdf/internal/model"
	"github.com/kart-io/insight-pdf/internal/pkg/docutil"
)

func newTestIndexer(t *testing.T, embed *mockEmbedProvider, batchSize int) (*Indexer, *store.MemoryStore) {
	t.Helper()

	memStore := store.NewMemoryStore()
	if err := memStore.EnsureCollection(context.Background(), &store.CollectionConfig{Name: testCollection, Dimension: 3}); err != nil {
		t.Fatalf("创建集合失败: %v", err)
	}

	splitter := NewSentenceSplitter(&SplitterConfig{ChunkSize: 100, ChunkOverlap: 20, MinChunkLen: 5})
	indexer := NewIndexer(memStore, embed, splitter, &IndexerConfig{
		Collection:     testCollection,
		EmbedBatchSize: batchSize,
	})
	return indexer, memStore
}

func TestIndexer_IndexPages(t *testing.T) {
	indexer, memStore := newTestIndexer(t, &mockEmbedProvider{}, 32)
	ctx := context.Background()

	doc := &model.Document{ID: "doc-1", Filename: "report.pdf", CreatedAt: time.Now()}
	pages := []docutil.Page{
		{Number: 1, Text: "Go was created at Google. It compiles quickly."},
		{Number: 2, Text: "Goroutines make concurrency simple."},
	}

	contents, err := indexer.IndexPages(ctx, doc, pages)
	if err != nil {
		t.Fatalf("IndexPages 失败: %v", err)
	}
	if len(contents) == 0 {
		t.Fatal("应产出至少一个分块")
	}

	count, err := memStore.GetStats(ctx, testCollection)
	if err != nil {
		t.Fatalf("GetStats 失败: %v", err)
	}
	if int(count) != len(contents) {
		t.Errorf("向量存储分块数 %d 与产出分块数 %d 不符", count, len(contents))
	}

	// 检索结果应携带页码
	results, err := memStore.Search(ctx, testCollection, []float32{1, 0, 0}, 10, "doc-1")
	if err != nil {
		t.Fatalf("Search 失败: %v", err)
	}
	foundPage2 := false
	for _, result := range results {
		if result.Page == 2 && strings.Contains(result.Content, "Goroutines") {
			foundPage2 = true
		}
	}
	if !foundPage2 {
		t.Error("第 2 页的分块应携带正确页码")
	}
}

func TestIndexer_EmptyDocument(t *testing.T) {
	indexer, _ := newTestIndexer(t, &mockEmbedProvider{}, 32)

	doc := &model.Document{ID: "doc-1", Filename: "empty.pdf"}
	if _, err := indexer.IndexPages(context.Background(), doc, []docutil.Page{{Number: 1, Text: "  "}}); err == nil {
		t.Error("无可索引内容应返回错误")
	}
}

func TestIndexer_EmbedBatching(t *testing.T) {
	var embedCalls int
	embed := &mockEmbedProvider{
		embedFunc: func(_ context.Context, texts []string) ([][]float32, error) {
			embedCalls++
			if len(texts) > 2 {
				t.Errorf("单批嵌入不应超过 2 条，实际 %d", len(texts))
			}
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{1, 0, 0}
			}
			return out, nil
		},
	}
	indexer, _ := newTestIndexer(t, embed, 2)

	doc := &model.Document{ID: "doc-1", Filename: "report.pdf"}
	pages := []docutil.Page{
		{Number: 1, Text: "First sentence here. Second sentence here. Third sentence here. Fourth sentence here. Fifth sentence here. Sixth sentence here."},
	}

	contents, err := indexer.IndexPages(context.Background(), doc, pages)
	if err != nil {
		t.Fatalf("IndexPages 失败: %v", err)
	}
	if len(contents) > 2 && embedCalls < 2 {
		t.Errorf("分块数 %d 超过批大小时应分多批嵌入，实际 %d 批", len(contents), embedCalls)
	}
}

func TestIndexer_EmbedError(t *testing.T) {
	embed := &mockEmbedProvider{
		embedFunc: func(_ context.Context, _ []string) ([][]float32, error) {
			return nil, errors.New("embedding service down")
		},
	}
	indexer, _ := newTestIndexer(t, embed, 32)

	doc := &model.Document{ID: "doc-1", Filename: "report.pdf"}
	pages := []docutil.Page{{Number: 1, Text: "Some content worth indexing here."}}

	if _, err := indexer.IndexPages(context.Background(), doc, pages); err == nil {
		t.Error("嵌入错误应向上传递")
	}
}

func TestIndexer_EmbedCountMismatch(t *testing.T) {
	embed := &mockEmbedProvider{
		embedFunc: func(_ context.Context, texts []string) ([][]float32, error) {
			// 少返回一个向量
			out := make([][]float32, 0, len(texts))
			for i := 0; i < len(texts)-1; i++ {
				out = append(out, []float32{1, 0, 0})
			}
			return out, nil
		},
	}
	indexer, _ := newTestIndexer(t, embed, 32)

	doc := &model.Document{ID: "doc-1", Filename: "report.pdf"}
	pages := []docutil.Page{{Number: 1, Text: "Some content worth indexing here. More content on the page."}}

	if _, err := indexer.IndexPages(context.Background(), doc, pages); err == nil {
		t.Error("嵌入数量不匹配应返回错误")
	}
}
