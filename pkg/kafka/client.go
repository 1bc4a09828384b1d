// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"novel-ai-go/internal/config"
	"novel-ai-go/pkg/log"
	"novel-ai-go/pkg/tasks"
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	ProcessTask(ctx context.Context, task tasks.EmbeddingTask) error
}

// Producer 封装向量化任务的生产端。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 创建 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// ProduceEmbeddingTask 发送一个向量化任务到 Kafka。
func (p *Producer) ProduceEmbeddingTask(task tasks.EmbeddingTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(context.Background(),
		kafka.Message{
			// 同一实体的消息落到同一分区，保证其向量更新按序消费
			Key:   []byte(fmt.Sprintf("%s:%d", task.Kind, task.EntityID)),
			Value: taskBytes,
		},
	)
}

// Close 关闭生产者连接。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer 封装向量化任务的消费端。rdb 用于记录失败次数，
// 同一任务失败达到阈值后提交 offset 终止重试。
type Consumer struct {
	reader *kafka.Reader
	rdb    *redis.Client
}

// NewConsumer 创建 Kafka 消费者。
func NewConsumer(cfg config.KafkaConfig, rdb *redis.Client) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: r, rdb: rdb}
}

// Run 启动消费循环，处理向量化任务，直到 ctx 取消。
func (c *Consumer) Run(ctx context.Context, processor TaskProcessor) {
	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", c.reader.Config().Topic)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者收到退出信号")
				break
			}
			log.Error("从 Kafka 读取消息失败", err)
			break
		}

		log.Infof("收到 Kafka 消息: offset %d", m.Offset)

		var task tasks.EmbeddingTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := c.reader.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		log.Infof("开始处理向量化任务: Kind=%s, EntityID=%d", task.Kind, task.EntityID)
		if err := processor.ProcessTask(ctx, task); err != nil {
			log.Errorf("处理向量化任务失败: Kind=%s, EntityID=%d, Error: %v", task.Kind, task.EntityID, err)
			if c.shouldGiveUp(ctx, task) {
				log.Errorf("向量化任务多次失败(>=3)，提交 offset 终止重试: Kind=%s, EntityID=%d", task.Kind, task.EntityID)
				if err := c.reader.CommitMessages(ctx, m); err != nil {
					log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
				}
			}
			// 未达阈值时不提交 offset，让 Kafka 自动重试
		} else {
			log.Infof("向量化任务处理成功: Kind=%s, EntityID=%d", task.Kind, task.EntityID)
			c.clearAttempts(ctx, task)
			if err := c.reader.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
	}

	if err := c.reader.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}

// shouldGiveUp 用 Redis 计数失败次数，达到 3 次返回 true。
// Redis 不可用时保守处理：不提交 offset，让 Kafka 重试。
func (c *Consumer) shouldGiveUp(ctx context.Context, task tasks.EmbeddingTask) bool {
	if c.rdb == nil {
		return false
	}
	attemptsKey := fmt.Sprintf("kafka:attempts:%s:%d", task.Kind, task.EntityID)
	attempts, err := c.rdb.Incr(ctx, attemptsKey).Result()
	if err != nil {
		return false
	}
	_ = c.rdb.Expire(ctx, attemptsKey, 24*time.Hour).Err()
	return attempts >= 3
}

func (c *Consumer) clearAttempts(ctx context.Context, task tasks.EmbeddingTask) {
	if c.rdb == nil {
		return
	}
	_ = c.rdb.Del(ctx, fmt.Sprintf("kafka:attempts:%s:%d", task.Kind, task.EntityID)).Err()
}
