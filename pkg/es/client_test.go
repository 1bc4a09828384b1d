package es

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeScore(t *testing.T) {
	// script_score 得分 = cos + 1.0
	assert.InDelta(t, 1.0, NormalizeScore(2.0), 1e-9) // 方向一致
	assert.InDelta(t, 0.5, NormalizeScore(1.5), 1e-9)
	assert.InDelta(t, 0.0, NormalizeScore(1.0), 1e-9) // 正交
	assert.Equal(t, 0.0, NormalizeScore(0.2))         // 方向相反裁剪为 0
	assert.Equal(t, 1.0, NormalizeScore(2.3))         // 浮点越界裁剪为 1
}

// newStubClient 构造指向 httptest 服务器的客户端，跳过索引创建。
func newStubClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	raw, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return &Client{es: raw, indexName: "novel_vectors"}, srv
}

func TestSearchSimilarBuildsQueryAndNormalizes(t *testing.T) {
	var captured map[string]interface{}
	client, srv := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/novel_vectors/_search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_source":{"vector_id":"chapter:2:-1","entity_kind":"chapter","entity_id":2,"novel_id":1,"chunk_id":-1},"_score":1.95},
			{"_source":{"vector_id":"chapter:5:-1","entity_kind":"chapter","entity_id":5,"novel_id":1,"chunk_id":-1},"_score":1.72}
		]}}`))
	})
	defer srv.Close()

	hits, err := client.SearchSimilar(context.Background(), SearchParams{
		NovelID:     1,
		QueryVector: []float32{1, 0, 0},
		ExcludeIDs:  []uint{9},
		Size:        10,
		MinScore:    0.6,
	})
	require.NoError(t, err)

	// min_score 按 cos+1.0 偏移换算
	assert.InDelta(t, 1.6, captured["min_score"].(float64), 1e-9)
	// 得分换算回 [0,1] 相似度
	require.Len(t, hits, 2)
	assert.InDelta(t, 0.95, hits[0].Score, 1e-9)
	assert.InDelta(t, 0.72, hits[1].Score, 1e-9)
	assert.Equal(t, uint(2), hits[0].Doc.EntityID)

	// 查询体包含 novel 范围过滤与排除列表
	body, _ := json.Marshal(captured)
	assert.Contains(t, string(body), `"novel_id":1`)
	assert.Contains(t, string(body), `"must_not"`)
	assert.Contains(t, string(body), `"entity_id":[9]`)
	assert.Contains(t, string(body), `cosineSimilarity`)
}

func TestSearchSimilarChunkLevelFilter(t *testing.T) {
	var captured string
	client, srv := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		raw, _ := json.Marshal(body)
		captured = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":{"hits":[]}}`))
	})
	defer srv.Close()

	_, err := client.SearchSimilar(context.Background(), SearchParams{
		NovelID:     3,
		QueryVector: []float32{0, 1},
		ChunkLevel:  true,
		Size:        5,
		MinScore:    0.75,
	})
	require.NoError(t, err)
	// 分块级检索只匹配 chunk_id >= 0
	assert.Contains(t, captured, `"range"`)
	assert.Contains(t, captured, `"gte":0`)
}
