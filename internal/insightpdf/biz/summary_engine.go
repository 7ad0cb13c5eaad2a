package biz

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/insight-pdf/pkg/infra/pool"
	"github.com/kart-io/insight-pdf/pkg/llm"
)

// summaryBatchPrompt 对一批文本片段回答问题的提示词模板。
const summaryBatchPrompt = `Context information from a document is below.

{{context}}

Given the context information and no prior knowledge, answer the question.
Question: {{question}}

Answer:`

// SummaryEngineConfig 摘要查询引擎配置。
type SummaryEngineConfig struct {
	// BatchSize 每次 LLM 调用合并的文本片段数。
	BatchSize int
}

// SummaryQueryEngine 树形归约摘要引擎。
// 文档的所有分块按批并行生成中间答案，中间答案再逐层归约，
// 直到只剩一个最终答案。适合"总结这份文档"类的全局问题。
type SummaryQueryEngine struct {
	chatProvider llm.ChatProvider
	chunks       []string
	pool         *pool.Pool
	config       *SummaryEngineConfig
}

var _ QueryEngine = (*SummaryQueryEngine)(nil)

// NewSummaryQueryEngine 创建摘要查询引擎。
// workerPool 可为 nil，此时批任务串行执行。
func NewSummaryQueryEngine(chatProvider llm.ChatProvider, chunks []string, workerPool *pool.Pool, config *SummaryEngineConfig) *SummaryQueryEngine {
	if config == nil {
		config = &SummaryEngineConfig{}
	}
	// 批大小必须大于 1，否则归约无法收敛
	if config.BatchSize < 2 {
		config.BatchSize = 5
	}
	return &SummaryQueryEngine{
		chatProvider: chatProvider,
		chunks:       chunks,
		pool:         workerPool,
		config:       config,
	}
}

// Query 对文档的全部分块做树形归约并回答问题。
func (e *SummaryQueryEngine) Query(ctx context.Context, question string) (*EngineResponse, error) {
	if len(e.chunks) == 0 {
		return nil, fmt.Errorf("文档没有可摘要的内容")
	}

	var usageMu sync.Mutex
	var totalUsage *llm.TokenUsage

	texts := e.chunks
	for pass := 1; ; pass++ {
		batches := batchTexts(texts, e.config.BatchSize)
		logger.Infow("摘要归约",
			"pass", pass,
			"inputs", len(texts),
			"batches", len(batches),
		)

		intermediate := make([]string, len(batches))
		var wg sync.WaitGroup
		var errMu sync.Mutex
		var firstErr error

		for i, batch := range batches {
			i, batch := i, batch
			task := func() {
				defer wg.Done()
				resp, err := e.answerBatch(ctx, question, batch)
				if err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					return
				}
				intermediate[i] = resp.Content
				usageMu.Lock()
				totalUsage = addUsage(totalUsage, resp.TokenUsage)
				usageMu.Unlock()
			}

			wg.Add(1)
			if e.pool != nil {
				if err := e.pool.Submit(task); err != nil {
					// 池不可用时降级为串行执行
					logger.Warnw("摘要任务提交失败，降级为串行执行", "error", err.Error())
					task()
				}
			} else {
				task()
			}
		}

		wg.Wait()
		if firstErr != nil {
			return nil, firstErr
		}

		texts = intermediate
		if len(texts) == 1 {
			break
		}
	}

	return &EngineResponse{
		Answer:     strings.TrimSpace(texts[0]),
		TokenUsage: totalUsage,
	}, nil
}

// answerBatch 对一批文本片段回答问题。
func (e *SummaryQueryEngine) answerBatch(ctx context.Context, question string, batch []string) (*llm.GenerateResponse, error) {
	prompt := strings.ReplaceAll(summaryBatchPrompt, "{{context}}", strings.Join(batch, "\n\n"))
	prompt = strings.ReplaceAll(prompt, "{{question}}", question)

	resp, err := e.chatProvider.Generate(ctx, prompt, "")
	if err != nil {
		return nil, fmt.Errorf("摘要批处理失败: %w", err)
	}
	return resp, nil
}

// batchTexts 将文本切分为大小不超过 batchSize 的批次。
func batchTexts(texts []string, batchSize int) [][]string {
	var batches [][]string
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[i:end])
	}
	return batches
}
