// Package cache 提供基于 Redis 的读穿缓存层，用于向量与查询结果。
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"novel-ai-go/internal/config"
	"novel-ai-go/pkg/log"
)

// Cache 是向量与查询结果的缓存层。
// 底层 Redis 不可用（rdb 为 nil 或操作报错）时自动退化：读全部 miss、
// 写全部 no-op，只记日志，绝不向调用方传播错误。
type Cache struct {
	rdb       *redis.Client
	vectorTTL time.Duration
	queryTTL  time.Duration
}

// New 创建缓存层。rdb 允许为 nil，表示启动时后端就不可用。
func New(rdb *redis.Client, cfg config.CacheConfig) *Cache {
	return &Cache{
		rdb:       rdb,
		vectorTTL: cfg.VectorTTL,
		queryTTL:  cfg.QueryTTL,
	}
}

// VectorKey 返回实体向量的缓存键: embedding:{entityID}。
func VectorKey(entityID uint) string {
	return fmt.Sprintf("embedding:%d", entityID)
}

// QueryKey 返回查询结果的缓存键: query:{novelID}:{hash}。
// hash 取归一化（去首尾空白、小写）查询文本的 SHA-1。
func QueryKey(novelID uint, queryText string) string {
	normalized := strings.ToLower(strings.TrimSpace(queryText))
	sum := sha1.Sum([]byte(normalized))
	return fmt.Sprintf("query:%d:%s", novelID, hex.EncodeToString(sum[:]))
}

// Get 读取键并把 JSON 负载解码到 dest，返回是否命中。
// 后端故障与未命中同样处理：返回 false。
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c.rdb == nil {
		return false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warnf("[Cache] 读取 %s 失败, 视为未命中: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		log.Warnf("[Cache] 解码 %s 缓存负载失败, 视为未命中: %v", key, err)
		return false
	}
	return true
}

// Set 以 JSON 序列化写入键值并设置 TTL。后端故障只记日志。
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		log.Warnf("[Cache] 序列化 %s 缓存负载失败: %v", key, err)
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Warnf("[Cache] 写入 %s 失败: %v", key, err)
	}
}

// SetVector 以向量 TTL 缓存实体向量。
func (c *Cache) SetVector(ctx context.Context, entityID uint, vector []float32) {
	c.Set(ctx, VectorKey(entityID), vector, c.vectorTTL)
}

// GetVector 读取实体向量缓存。
func (c *Cache) GetVector(ctx context.Context, entityID uint) ([]float32, bool) {
	var vector []float32
	ok := c.Get(ctx, VectorKey(entityID), &vector)
	return vector, ok
}

// SetQuery 以查询 TTL 缓存查询结果。
func (c *Cache) SetQuery(ctx context.Context, key string, value interface{}) {
	c.Set(ctx, key, value, c.queryTTL)
}

// Invalidate 显式删除单个键。
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		log.Warnf("[Cache] 删除 %s 失败: %v", key, err)
	}
}

// InvalidatePattern 删除匹配前缀的全部键（prefix 后自动追加 *），
// 返回删除的键数。实体文本变更后用它作废关联的查询结果缓存。
// 用 SCAN 游标分批遍历，避免 KEYS 在大键空间下阻塞 Redis。
func (c *Cache) InvalidatePattern(ctx context.Context, prefix string) int {
	if c.rdb == nil {
		return 0
	}
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			log.Warnf("[Cache] 扫描前缀 %s 失败: %v", prefix, err)
			return deleted
		}
		if len(keys) > 0 {
			n, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				log.Warnf("[Cache] 批量删除前缀 %s 失败: %v", prefix, err)
				return deleted
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted
		}
	}
}
