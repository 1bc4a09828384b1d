// Package embedding provides a client for interacting with embedding models.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"novel-ai-go/internal/config"
	"novel-ai-go/pkg/log"
)

// Purpose 标识一次向量化请求的用途，文档入库与查询使用不同的任务类型。
type Purpose string

const (
	PurposeDocument Purpose = "document"
	PurposeQuery    Purpose = "query"
)

// Client defines the interface for an embedding client.
type Client interface {
	CreateEmbedding(ctx context.Context, text string, purpose Purpose) ([]float32, error)
}

type openAICompatibleClient struct {
	cfg    config.EmbeddingConfig
	client *http.Client
}

// NewClient creates a new embedding client based on the provider in the config.
func NewClient(cfg config.EmbeddingConfig) Client {
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	InputType  string   `json:"input_type,omitempty"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// embeddingResponse 同时声明所有受支持的响应结构，解码后由
// normalize 按封闭的结构集合提取向量。
type embeddingResponse struct {
	// OpenAI 兼容结构: {"data":[{"embedding":[...]}]}
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	// 标量结构: {"embedding":[...]}
	Embedding []float32 `json:"embedding"`
	// 对象列表结构: {"embeddings":[{"embedding":[...]}]}
	Embeddings []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"embeddings"`
}

// normalize 从响应中提取唯一向量。识别不出任何已知结构时返回
// MalformedResponseError，绝不返回零向量兜底。
func (r *embeddingResponse) normalize() ([]float32, error) {
	switch {
	case len(r.Data) > 0 && len(r.Data[0].Embedding) > 0:
		return r.Data[0].Embedding, nil
	case len(r.Embedding) > 0:
		return r.Embedding, nil
	case len(r.Embeddings) > 0 && len(r.Embeddings[0].Embedding) > 0:
		return r.Embeddings[0].Embedding, nil
	}
	return nil, &MalformedResponseError{Detail: "响应中不包含任何已知形式的向量字段"}
}

// CreateEmbedding calls the OpenAI-compatible API to get the vector for a given text.
func (c *openAICompatibleClient) CreateEmbedding(ctx context.Context, text string, purpose Purpose) ([]float32, error) {
	log.Debugf("[EmbeddingClient] 开始调用 Embedding API, model: %s, purpose: %s, input_len: %d", c.cfg.Model, purpose, len(text))
	reqBody := embeddingRequest{
		Model:      c.cfg.Model,
		Input:      []string{text},
		InputType:  string(purpose),
		Dimensions: c.cfg.Dimensions,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/embeddings", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[EmbeddingClient] 调用 Embedding API 失败, error: %v", err)
		return nil, fmt.Errorf("failed to call embedding api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("[EmbeddingClient] Embedding API 返回非 200 状态码: %s", resp.Status)
		return nil, fmt.Errorf("embedding api returned non-200 status: %s", resp.Status)
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		log.Errorf("[EmbeddingClient] 解析 Embedding API 响应失败, error: %v", err)
		return nil, &MalformedResponseError{Detail: fmt.Sprintf("响应不是合法 JSON: %v", err)}
	}

	vector, err := embeddingResp.normalize()
	if err != nil {
		log.Errorf("[EmbeddingClient] %v", err)
		return nil, err
	}

	log.Debugf("[EmbeddingClient] 成功从 Embedding API 获取向量, 维度: %d", len(vector))
	return vector, nil
}
