package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-ai-go/internal/config"
)

// fakeClient 按预设脚本依次返回响应，记录调用次数。
type fakeClient struct {
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	vector []float32
	err    error
}

func (f *fakeClient) CreateEmbedding(ctx context.Context, text string, purpose Purpose) ([]float32, error) {
	resp := f.responses[f.calls%len(f.responses)]
	f.calls++
	return resp.vector, resp.err
}

func newTestGenerator(client Client, dims int) (*Generator, *[]time.Duration) {
	g := NewGenerator(client, config.EmbeddingConfig{
		Dimensions:     dims,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
	})
	var slept []time.Duration
	g.sleep = func(d time.Duration) { slept = append(slept, d) }
	return g, &slept
}

func TestEmbedRejectsEmptyInput(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{vector: []float32{1, 0}}}}
	g, _ := newTestGenerator(client, 2)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := g.Embed(context.Background(), text, PurposeDocument)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Zero(t, client.calls, "空输入不应触发远端调用")
}

func TestEmbedSuccessFirstAttempt(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{vector: []float32{0.5, 0.5}}}}
	g, slept := newTestGenerator(client, 2)

	vector, err := g.Embed(context.Background(), "英雄打败了恶龙", PurposeDocument)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vector)
	assert.Empty(t, *slept)
}

func TestEmbedRetriesWithLinearBackoff(t *testing.T) {
	providerErr := errors.New("connection reset")
	client := &fakeClient{responses: []fakeResponse{
		{err: providerErr},
		{err: providerErr},
		{vector: []float32{1, 0}},
	}}
	g, slept := newTestGenerator(client, 2)

	vector, err := g.Embed(context.Background(), "文本", PurposeQuery)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vector)
	assert.Equal(t, 3, client.calls)
	// 线性退避: attempt × baseDelay
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestEmbedExhaustedRetriesReturnsUnavailable(t *testing.T) {
	providerErr := errors.New("upstream down")
	client := &fakeClient{responses: []fakeResponse{{err: providerErr}}}
	g, _ := newTestGenerator(client, 2)

	_, err := g.Embed(context.Background(), "文本", PurposeDocument)
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 3, unavailable.Attempts)
	assert.ErrorIs(t, err, providerErr)
	assert.Equal(t, 3, client.calls)
}

func TestEmbedMalformedResponseNotRetried(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: &MalformedResponseError{Detail: "unknown shape"}},
	}}
	g, slept := newTestGenerator(client, 2)

	_, err := g.Embed(context.Background(), "文本", PurposeDocument)
	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, *slept)
}

func TestEmbedRejectsDimensionMismatch(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{vector: []float32{1, 2, 3}}}}
	g, _ := newTestGenerator(client, 768)

	_, err := g.Embed(context.Background(), "文本", PurposeDocument)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "维度不符")
}

func TestEmbedContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeClient{responses: []fakeResponse{{err: errors.New("boom")}}}
	g, _ := newTestGenerator(client, 2)
	g.sleep = func(time.Duration) { cancel() }

	_, err := g.Embed(ctx, "文本", PurposeDocument)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, client.calls, 3)
}
