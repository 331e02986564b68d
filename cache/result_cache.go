package cache

import (
	"context"
	"time"

	"Chroma/logger"

	"github.com/redis/go-redis/v9"
)

// MaxCachedResult 超过该大小的结果不进缓存，直接从存储读取
const MaxCachedResult = 5 * 1024 * 1024

// ResultCacheTTL 结果缓存过期时间
const ResultCacheTTL = 30 * time.Minute

// ResultKey 获取结果缓存 key
func ResultKey(objectKey string) string {
	return "result:" + objectKey
}

// ResultCache 小文件结果缓存，命中失败时调用方回退到对象存储
type ResultCache struct {
	client *redis.Client
}

func NewResultCache(client *redis.Client) *ResultCache {
	if client == nil {
		client = RedisClient
	}
	return &ResultCache{client: client}
}

// Set 设置结果缓存，过大的数据直接忽略
func (c *ResultCache) Set(ctx context.Context, objectKey string, data []byte) error {
	if c == nil || c.client == nil || len(data) > MaxCachedResult {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, ResultKey(objectKey), data, ResultCacheTTL).Err(); err != nil {
		logger.Error("设置结果缓存失败",
			logger.String("key", objectKey),
			logger.Int("dataSize", len(data)),
			logger.ErrorField(err))
		return err
	}
	return nil
}

// Get 获取结果缓存，未命中或出错都返回 nil
func (c *ResultCache) Get(ctx context.Context, objectKey string) []byte {
	if c == nil || c.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// 最多重试2次
	maxRetries := 2
	retryDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		data, err := c.client.Get(ctx, ResultKey(objectKey)).Bytes()
		if err == nil {
			return data
		}
		if err == redis.Nil {
			return nil
		}
		if attempt < maxRetries-1 {
			logger.Warn("获取结果缓存失败，准备重试",
				logger.String("key", objectKey),
				logger.Int("attempt", attempt+1),
				logger.ErrorField(err))
			time.Sleep(retryDelay)
			retryDelay *= 2
			continue
		}
		logger.Error("获取结果缓存最终失败，将从存储读取",
			logger.String("key", objectKey),
			logger.ErrorField(err))
	}
	return nil
}

// DeleteJob 批量删除某个任务的结果缓存
func (c *ResultCache) DeleteJob(ctx context.Context, jobID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pattern := ResultKey("results/" + jobID + "/*")
	keys, err := c.client.Keys(ctx, pattern).Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	logger.Info("批量删除结果缓存成功",
		logger.String("pattern", pattern),
		logger.Int("deletedCount", len(keys)))
	return nil
}
