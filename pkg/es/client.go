// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"novel-ai-go/internal/config"
	"novel-ai-go/internal/model"
	"novel-ai-go/pkg/log"
)

// Client 封装向量索引的全部 Elasticsearch 操作。
// 由组合根构造后注入使用方，不提供包级全局实例。
type Client struct {
	es        *elasticsearch.Client
	indexName string
}

// NewClient 创建 Elasticsearch 客户端并确保向量索引存在。
// dims 是向量维度 D，索引 mapping 以 cosine 相似度建立 dense_vector 字段。
func NewClient(cfg config.ESConfig, dims int) (*Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.Addresses},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	raw, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, err
	}
	c := &Client{es: raw, indexName: cfg.IndexName}
	if err := c.createIndexIfNotExists(dims); err != nil {
		return nil, err
	}
	return c, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它。
func (c *Client) createIndexIfNotExists(dims int) error {
	res, err := c.es.Indices.Exists([]string{c.indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", c.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", c.indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	// 文档级与分块级向量同索引存放，chunk_id = -1 标记文档级向量
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"vector_id": { "type": "keyword" },
				"entity_kind": { "type": "keyword" },
				"entity_id": { "type": "long" },
				"novel_id": { "type": "long" },
				"chunk_id": { "type": "integer" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" }
			}
		}
	}`, dims)

	res, err = c.es.Indices.Create(
		c.indexName,
		c.es.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", c.indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", c.indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", c.indexName)
	return nil
}

// IndexDoc 将单个向量文档索引到 Elasticsearch，按 vector_id 覆盖写。
func (c *Client) IndexDoc(ctx context.Context, doc model.EsVectorDoc) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      c.indexName,
		DocumentID: doc.VectorID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引向量文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index vector document")
	}
	return nil
}

// DeleteByEntity 删除某实体的全部向量文档（文档级 + 所有分块）。
func (c *Client) DeleteByEntity(ctx context.Context, kind string, entityID uint) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []map[string]interface{}{
					{"term": map[string]interface{}{"entity_kind": kind}},
					{"term": map[string]interface{}{"entity_id": entityID}},
				},
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return err
	}

	res, err := c.es.DeleteByQuery(
		[]string{c.indexName},
		&buf,
		c.es.DeleteByQuery.WithContext(ctx),
		c.es.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("删除实体向量文档出错: %s", res.String())
		return errors.New("failed to delete vector documents")
	}
	return nil
}

// SearchParams 是一次向量检索的参数。
type SearchParams struct {
	NovelID     uint
	QueryVector []float32
	ChunkLevel  bool // false: 仅文档级向量; true: 仅分块向量
	ExcludeIDs  []uint
	Size        int
	MinScore    float64 // [0,1] 的相似度阈值
}

// Hit 是一条检索命中，Score 已换算回 [0,1] 的余弦相似度。
type Hit struct {
	Doc   model.EsVectorDoc
	Score float64
}

// SearchSimilar 用 script_score 对 novel 范围内的向量做精确余弦扫描。
// 脚本内用 cosineSimilarity + 1.0 保证得分非负（ES 要求），
// min_score 与返回分数都按同一偏移换算。
func (c *Client) SearchSimilar(ctx context.Context, p SearchParams) ([]Hit, error) {
	filters := []map[string]interface{}{
		{"term": map[string]interface{}{"novel_id": p.NovelID}},
	}
	if p.ChunkLevel {
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"chunk_id": map[string]interface{}{"gte": 0}},
		})
	} else {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"chunk_id": model.DocLevelChunk},
		})
	}

	boolQuery := map[string]interface{}{"filter": filters}
	if len(p.ExcludeIDs) > 0 {
		boolQuery["must_not"] = []map[string]interface{}{
			{"terms": map[string]interface{}{"entity_id": p.ExcludeIDs}},
		}
	}

	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"script_score": map[string]interface{}{
				"query": map[string]interface{}{"bool": boolQuery},
				"script": map[string]interface{}{
					"source": "cosineSimilarity(params.query_vector, 'vector') + 1.0",
					"params": map[string]interface{}{"query_vector": p.QueryVector},
				},
			},
		},
		"min_score": p.MinScore + 1.0,
		"size":      p.Size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.indexName),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[ES] 向量检索返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsVectorDoc `json:"_source"`
				Score  float64           `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	hits := make([]Hit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		hits = append(hits, Hit{
			Doc:   h.Source,
			Score: NormalizeScore(h.Score),
		})
	}
	return hits, nil
}

// NormalizeScore 把 script_score 的 cos+1.0 得分换算回 [0,1] 的相似度
//（相似度 = 1 − 余弦距离，方向相反时按 0 报告）。
func NormalizeScore(esScore float64) float64 {
	cos := esScore - 1.0
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}
