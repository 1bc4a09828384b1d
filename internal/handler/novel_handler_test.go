package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-ai-go/internal/config"
	"novel-ai-go/internal/model"
	"novel-ai-go/internal/vector"
	"novel-ai-go/pkg/cache"
	"novel-ai-go/pkg/embedding"
	"novel-ai-go/pkg/es"
)

// fixedEmbedClient 返回固定向量，让检索路径可以走通。
type fixedEmbedClient struct{}

func (c *fixedEmbedClient) CreateEmbedding(ctx context.Context, text string, purpose embedding.Purpose) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

// captureIndex 记录最近一次检索参数，返回空命中。
type captureIndex struct {
	lastParams es.SearchParams
}

func (f *captureIndex) IndexDoc(ctx context.Context, doc model.EsVectorDoc) error { return nil }

func (f *captureIndex) DeleteByEntity(ctx context.Context, kind string, entityID uint) error {
	return nil
}

func (f *captureIndex) SearchSimilar(ctx context.Context, p es.SearchParams) ([]es.Hit, error) {
	f.lastParams = p
	return nil, nil
}

// noopEmbeddingRepo 是 DocumentEmbeddingRepository 的空实现，检索无命中时不会被触达。
type noopEmbeddingRepo struct{}

func (r *noopEmbeddingRepo) Upsert(record *model.DocumentEmbedding) error { return nil }
func (r *noopEmbeddingRepo) FindByEntity(kind string, entityID uint) (*model.DocumentEmbedding, error) {
	return nil, nil
}
func (r *noopEmbeddingRepo) FindBatchByEntities(kind string, entityIDs []uint) ([]*model.DocumentEmbedding, error) {
	return nil, nil
}
func (r *noopEmbeddingRepo) FindByNovelID(novelID uint) ([]*model.DocumentEmbedding, error) {
	return nil, nil
}
func (r *noopEmbeddingRepo) DeleteByEntity(kind string, entityID uint) error { return nil }

func newSimilarRouter(t *testing.T) (*gin.Engine, *captureIndex) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.EmbeddingConfig{
		Dimensions:     3,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
		Model:          "test-embedding",
		ChunkSizeChars: 10,
	}
	gen := embedding.NewGenerator(&fixedEmbedClient{}, cfg)
	batch := embedding.NewBatchProcessor(config.BatchConfig{MaxWorkers: 1, MaxRetries: 1, RetryDelay: time.Millisecond})
	index := &captureIndex{}
	store := vector.NewStore(gen, batch, &noopEmbeddingRepo{}, index, cache.New(nil, config.CacheConfig{}), cfg)

	h := NewNovelHandler(nil, store, config.ThresholdConfig{Context: 0.6, Chunk: 0.75})
	router := gin.New()
	router.GET("/api/v1/novels/:id/similar", h.Similar)
	return router, index
}

func doSimilarRequest(t *testing.T, router *gin.Engine, rawQuery string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/novels/1/similar?"+rawQuery, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestSimilarDefaultThresholdByGranularity(t *testing.T) {
	router, index := newSimilarRouter(t)

	// 文档级默认使用宽松的上下文阈值
	w := doSimilarRequest(t, router, "query=恶龙苏醒")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, index.lastParams.ChunkLevel)
	assert.InDelta(t, 0.6, index.lastParams.MinScore, 1e-9)

	// 分块级默认使用更严格的分块阈值
	w = doSimilarRequest(t, router, "query=恶龙苏醒&granularity=chunk")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, index.lastParams.ChunkLevel)
	assert.InDelta(t, 0.75, index.lastParams.MinScore, 1e-9)
}

func TestSimilarExplicitThresholdWins(t *testing.T) {
	router, index := newSimilarRouter(t)

	w := doSimilarRequest(t, router, "query=恶龙苏醒&granularity=chunk&threshold=0.9")
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 0.9, index.lastParams.MinScore, 1e-9)

	// 非法阈值回落到对应粒度的默认值
	w = doSimilarRequest(t, router, "query=恶龙苏醒&granularity=chunk&threshold=1.5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 0.75, index.lastParams.MinScore, 1e-9)
}
