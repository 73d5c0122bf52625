package embed

import (
	"context"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"websearch/internal/config"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestStaticEmbedderDeterministic(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	v1, err := e.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, StaticDimensions)
}

func TestStaticEmbedderNormalized(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "vectors should have unit length")
	require.NoError(t, err)

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-5)
}

func TestStaticEmbedderSelfSimilarity(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	text := "Go is a statically typed compiled language."
	v1, err := e.Embed(context.Background(), text)
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), text)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, cosine(v1, v2), 0.999)
}

func TestStaticEmbedderRelatedTextsCloser(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	ctx := context.Background()
	base, err := e.Embed(ctx, "neural networks learn vector representations of text")
	require.NoError(t, err)
	related, err := e.Embed(ctx, "neural networks learn representations from text data")
	require.NoError(t, err)
	unrelated, err := e.Embed(ctx, "grilled salmon recipe with lemon butter sauce")
	require.NoError(t, err)

	assert.Greater(t, cosine(base, related), cosine(base, unrelated))
}

func TestStaticEmbedderEmptyText(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "   \n\t ")
	require.NoError(t, err)
	require.Len(t, vec, StaticDimensions)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticEmbedderClosed(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "anything")
	assert.Error(t, err)
}

func TestStaticEmbedderBatch(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	texts := []string{"first text", "second text", "third text"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))

	single, err := e.Embed(context.Background(), "second text")
	require.NoError(t, err)
	assert.Equal(t, single, vecs[1])
}

// countingEmbedder wraps StaticEmbedder and counts backend calls.
type countingEmbedder struct {
	*StaticEmbedder
	embedCalls int32
	batchTexts int32
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&c.embedCalls, 1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&c.batchTexts, int32(len(texts)))
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedderHit(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 16)
	defer func() { _ = cached.Close() }()

	ctx := context.Background()
	v1, err := cached.Embed(ctx, "cache me")
	require.NoError(t, err)
	v2, err := cached.Embed(ctx, "cache me")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.embedCalls))
}

func TestCachedEmbedderBatchPartialHit(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 16)
	defer func() { _ = cached.Close() }()

	ctx := context.Background()
	_, err := cached.Embed(ctx, "warm")
	require.NoError(t, err)

	vecs, err := cached.EmbedBatch(ctx, []string{"warm", "cold one", "cold two"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, StaticDimensions)
	}

	// Only the two misses hit the backend batch path.
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.batchTexts))
}

func TestCachedEmbedderEmptyBatch(t *testing.T) {
	cached := NewCachedEmbedder(NewStaticEmbedder(), 16)
	defer func() { _ = cached.Close() }()

	vecs, err := cached.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestNewStaticProvider(t *testing.T) {
	e, err := New(context.Background(), config.EmbeddingsConfig{Provider: "static", CacheSize: 8})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, StaticDimensions, e.Dimensions())
	assert.Equal(t, "static-hash-256", e.ModelName())
	assert.True(t, e.Available(context.Background()))
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.EmbeddingsConfig{Provider: "nope"})
	assert.Error(t, err)
}

func TestNormalizeVectorZero(t *testing.T) {
	v := []float32{0, 0, 0}
	assert.Equal(t, v, normalizeVector(v))
}
