package database

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"novel-ai-go/pkg/log"
)

// NewRedis 建立 Redis 客户端连接。
// 连接失败时返回 nil 客户端而不是错误：缓存层对 nil 客户端自动退化为
// 永远 miss 的模式，Redis 不可用不应阻止服务启动。
func NewRedis(addr, password string, db int) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warnf("Redis 连接失败，缓存将退化为直连模式: %v", err)
		_ = rdb.Close()
		return nil
	}

	log.Info("Redis client connected successfully")
	return rdb
}
