package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"Chroma/logger"
	"Chroma/model"

	"github.com/redis/go-redis/v9"
)

// ProgressTTL 进度信息的保留时间
const ProgressTTL = time.Hour

// ErrNoProgress 没有该任务的进度记录
var ErrNoProgress = errors.New("no progress recorded")

// ProgressStore keeps the latest progress snapshot per job.
type ProgressStore interface {
	SetProgress(ctx context.Context, p model.Progress) error
	GetProgress(ctx context.Context, jobID string) (*model.Progress, error)
	DeleteProgress(ctx context.Context, jobID string) error
}

// ProgressKey 获取任务进度的 Redis key
func ProgressKey(jobID string) string {
	return "progress:" + jobID
}

// RedisProgressCache 基于 Redis 的进度缓存
type RedisProgressCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProgressCache 创建进度缓存，client 为空时使用全局客户端
func NewRedisProgressCache(client *redis.Client) *RedisProgressCache {
	if client == nil {
		client = RedisClient
	}
	return &RedisProgressCache{client: client, ttl: ProgressTTL}
}

func (c *RedisProgressCache) SetProgress(ctx context.Context, p model.Progress) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	if err := c.client.Set(ctx, ProgressKey(p.JobID), data, c.ttl).Err(); err != nil {
		logger.Warn("写入任务进度失败", logger.JobID(p.JobID), logger.ErrorField(err))
		return err
	}
	return nil
}

func (c *RedisProgressCache) GetProgress(ctx context.Context, jobID string) (*model.Progress, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}
	data, err := c.client.Get(ctx, ProgressKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNoProgress
		}
		return nil, err
	}
	var p model.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &p, nil
}

func (c *RedisProgressCache) DeleteProgress(ctx context.Context, jobID string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return c.client.Del(ctx, ProgressKey(jobID)).Err()
}

// MemoryProgressCache is used when Redis is disabled.
type MemoryProgressCache struct {
	mu      sync.RWMutex
	entries map[string]model.Progress
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryProgressCache() *MemoryProgressCache {
	return &MemoryProgressCache{
		entries: make(map[string]model.Progress),
		ttl:     ProgressTTL,
		now:     time.Now,
	}
}

func (c *MemoryProgressCache) SetProgress(_ context.Context, p model.Progress) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = c.now()
	}
	c.mu.Lock()
	c.entries[p.JobID] = p
	c.mu.Unlock()
	return nil
}

func (c *MemoryProgressCache) GetProgress(_ context.Context, jobID string) (*model.Progress, error) {
	c.mu.RLock()
	p, ok := c.entries[jobID]
	c.mu.RUnlock()
	if !ok || c.now().Sub(p.UpdatedAt) > c.ttl {
		return nil, ErrNoProgress
	}
	return &p, nil
}

func (c *MemoryProgressCache) DeleteProgress(_ context.Context, jobID string) error {
	c.mu.Lock()
	delete(c.entries, jobID)
	c.mu.Unlock()
	return nil
}
