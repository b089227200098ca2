package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stalledBackend never answers; callers must be freed by their deadline.
type stalledBackend struct{}

func (stalledBackend) EmbedDocuments(ctx context.Context, _ []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledBackend) EmbedQuery(ctx context.Context, _ string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestEmbedHonorsTimeout(t *testing.T) {
	e := &Embedder{
		model:     stalledBackend{},
		dimension: 4,
		modelName: "stalled",
		timeout:   30 * time.Millisecond,
	}

	start := time.Now()
	_, err := e.Embed(context.Background(), "fillet all edges")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
	// Every attempt times out quickly, so even with retries and backoff the
	// call returns well under the unbounded-hang regime.
	require.Less(t, elapsed, 5*time.Second)
}

func TestEmbedStopsWhenCallerCancels(t *testing.T) {
	e := &Embedder{
		model:     stalledBackend{},
		dimension: 4,
		modelName: "stalled",
		timeout:   time.Minute,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := e.Embed(ctx, "extrude the sketch")
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
}
