package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/insight-pdf/internal/model"
	"github.com/kart-io/insight-pdf/internal/pkg/textutil"
	"github.com/kart-io/insight-pdf/pkg/utils/json"
)

// AnswerCacheConfig 答案缓存配置。
type AnswerCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// AnswerCache 基于 Redis 的问答结果缓存。
// 缓存键由文档 ID 和问题共同决定，缓存故障不影响查询主流程。
type AnswerCache struct {
	redis  *goredis.Client
	config *AnswerCacheConfig
}

// NewAnswerCache 创建答案缓存实例。
func NewAnswerCache(redis *goredis.Client, config *AnswerCacheConfig) *AnswerCache {
	if config == nil {
		config = &AnswerCacheConfig{
			Enabled:   false,
			TTL:       1 * time.Hour,
			KeyPrefix: "insightpdf:answer:",
		}
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "insightpdf:answer:"
	}
	return &AnswerCache{
		redis:  redis,
		config: config,
	}
}

// cacheKey 基于文档 ID 和问题生成缓存键。
// 文档 ID 作为独立段编入键名，支持按文档清除。
func (c *AnswerCache) cacheKey(documentID, question string) string {
	return c.config.KeyPrefix + documentID + ":" + textutil.HashString(question)
}

// enabled 缓存是否可用。
func (c *AnswerCache) enabled() bool {
	return c.config.Enabled && c.redis != nil
}

// Get 从缓存获取问答结果，未命中时返回 (nil, nil)。
func (c *AnswerCache) Get(ctx context.Context, documentID, question string) (*model.QueryResult, error) {
	if !c.enabled() {
		return nil, nil
	}

	key := c.cacheKey(documentID, question)

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		logger.Warnw("读取答案缓存失败", "error", err.Error(), "key", key)
		return nil, err
	}

	var result model.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("反序列化缓存答案失败", "error", err.Error(), "key", key)
		// 删除损坏的缓存
		_ = c.redis.Del(ctx, key).Err()
		return nil, err
	}

	logger.Infow("答案缓存命中", "document_id", documentID, "key", key)
	return &result, nil
}

// Set 将问答结果写入缓存。
func (c *AnswerCache) Set(ctx context.Context, documentID, question string, result *model.QueryResult) error {
	if !c.enabled() {
		return nil
	}

	key := c.cacheKey(documentID, question)

	data, err := json.Marshal(result)
	if err != nil {
		logger.Warnw("序列化答案失败", "error", err.Error())
		return err
	}

	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("写入答案缓存失败", "error", err.Error(), "key", key)
		return err
	}

	return nil
}

// DeleteByDocument 清除指定文档的全部缓存答案。
func (c *AnswerCache) DeleteByDocument(ctx context.Context, documentID string) error {
	if !c.enabled() {
		return nil
	}

	pattern := c.config.KeyPrefix + documentID + ":*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()

	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("删除缓存键失败", "error", err.Error(), "key", iter.Val())
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("扫描缓存键失败: %w", err)
	}

	return nil
}

// Clear 清除所有答案缓存。
func (c *AnswerCache) Clear(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}

	pattern := c.config.KeyPrefix + "*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()

	deletedCount := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("删除缓存键失败", "error", err.Error(), "key", iter.Val())
		} else {
			deletedCount++
		}
	}

	if err := iter.Err(); err != nil {
		logger.Warnw("扫描缓存键失败", "error", err.Error())
		return err
	}

	logger.Infow("答案缓存已清空", "deleted_count", deletedCount)
	return nil
}

// GetStats 获取缓存统计信息。
func (c *AnswerCache) GetStats(ctx context.Context) (map[string]interface{}, error) {
	if !c.enabled() {
		return map[string]interface{}{
			"enabled": false,
		}, nil
	}

	pattern := c.config.KeyPrefix + "*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()

	keyCount := 0
	for iter.Next(ctx) {
		keyCount++
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("扫描缓存键失败: %w", err)
	}

	return map[string]interface{}{
		"enabled":    true,
		"key_count":  keyCount,
		"ttl":        c.config.TTL.String(),
		"key_prefix": c.config.KeyPrefix,
	}, nil
}
