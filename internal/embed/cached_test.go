package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps StaticEmbedder and counts calls that reach it.
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

func TestCachedEmbedderHitsSkipInner(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	defer func() { _ = cached.Close() }()

	first, err := cached.Embed(context.Background(), "repeated text")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "repeated text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.embedCalls))
}

func TestCachedEmbedderBatchOnlyForwardsMisses(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	defer func() { _ = cached.Close() }()

	_, err := cached.Embed(context.Background(), "warm")
	require.NoError(t, err)

	vecs, err := cached.EmbedBatch(context.Background(), []string{"warm", "cold", "cold two"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	// Only the two misses reach the inner embedder's batch path.
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.batchTexts))
}

func TestCachedEmbedderPassthrough(t *testing.T) {
	cached := NewCachedEmbedder(NewStaticEmbedder(), 0)
	defer func() { _ = cached.Close() }()

	assert.Equal(t, StaticDimensions, cached.Dimensions())
	assert.Equal(t, "static", cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
}
