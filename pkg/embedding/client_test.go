package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-ai-go/internal/config"
)

func newTestClient(handler http.HandlerFunc) (Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewClient(config.EmbeddingConfig{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		Model:      "test-embedding",
		Dimensions: 4,
	})
	return client, srv
}

func TestCreateEmbeddingOpenAIShape(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "query", req["input_type"])

		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3,0.4]}]}`))
	})
	defer srv.Close()

	vector, err := client.CreateEmbedding(context.Background(), "猫和老鼠的故事", PurposeQuery)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, vector)
}

func TestCreateEmbeddingScalarShape(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[1,0,0,0]}`))
	})
	defer srv.Close()

	vector, err := client.CreateEmbedding(context.Background(), "文本", PurposeDocument)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, vector)
}

func TestCreateEmbeddingObjectListShape(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[{"embedding":[0,1,0,0]}]}`))
	})
	defer srv.Close()

	vector, err := client.CreateEmbedding(context.Background(), "文本", PurposeDocument)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0, 0}, vector)
}

func TestCreateEmbeddingUnknownShapeFailsClosed(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"values":[0.1,0.2]}}`))
	})
	defer srv.Close()

	_, err := client.CreateEmbedding(context.Background(), "文本", PurposeDocument)
	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func TestCreateEmbeddingEmptyVectorFailsClosed(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[]}]}`))
	})
	defer srv.Close()

	_, err := client.CreateEmbedding(context.Background(), "文本", PurposeDocument)
	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func TestCreateEmbeddingNon200(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer srv.Close()

	_, err := client.CreateEmbedding(context.Background(), "文本", PurposeDocument)
	require.Error(t, err)
	var malformed *MalformedResponseError
	assert.False(t, errors.As(err, &malformed), "非 200 是可重试的 provider 错误，不是结构错误")
}
