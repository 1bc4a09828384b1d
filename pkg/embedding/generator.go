package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"novel-ai-go/internal/config"
	"novel-ai-go/pkg/log"
)

// Generator 在 Client 之上叠加输入校验、维度校验与线性退避重试。
// 超时按单次尝试计（由 Client 的 HTTP 超时保证），不按整个重试序列计。
type Generator struct {
	client     Client
	dimensions int
	maxRetries int
	baseDelay  time.Duration
	// sleep 可在测试中替换以避免真实等待
	sleep func(time.Duration)
}

// NewGenerator 创建一个 Generator。maxRetries/baseDelay 取自配置，
// 零值回落到默认（3 次、1 秒）。
func NewGenerator(client Client, cfg config.EmbeddingConfig) *Generator {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Generator{
		client:     client,
		dimensions: cfg.Dimensions,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      time.Sleep,
	}
}

// Embed 将文本向量化。空白输入立即返回 ErrInvalidInput，不重试；
// 响应结构错误（MalformedResponseError）立即上抛，不重试；
// 其余 provider 错误按 attempt × baseDelay 线性退避重试，
// 耗尽后返回携带最后一次底层错误的 UnavailableError。
func (g *Generator) Embed(ctx context.Context, text string, purpose Purpose) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		vector, err := g.client.CreateEmbedding(ctx, text, purpose)
		if err == nil {
			if g.dimensions > 0 && len(vector) != g.dimensions {
				// 维度不符的向量一律拒绝，绝不补齐或截断
				return nil, fmt.Errorf("embedding 维度不符: 期望 %d, 实际 %d", g.dimensions, len(vector))
			}
			return vector, nil
		}

		var malformed *MalformedResponseError
		if errors.As(err, &malformed) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		if attempt < g.maxRetries {
			delay := time.Duration(attempt) * g.baseDelay
			log.Warnf("[EmbeddingGenerator] 第 %d/%d 次向量化失败, %v 后重试: %v", attempt, g.maxRetries, delay, err)
			g.sleep(delay)
		}
	}

	return nil, &UnavailableError{Attempts: g.maxRetries, Err: lastErr}
}

// EmbedDocument 以文档入库任务类型向量化文本。
func (g *Generator) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return g.Embed(ctx, text, PurposeDocument)
}

// EmbedQuery 以查询任务类型向量化文本。
func (g *Generator) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return g.Embed(ctx, text, PurposeQuery)
}

// Dimensions 返回配置的向量维度 D。
func (g *Generator) Dimensions() int {
	return g.dimensions
}
