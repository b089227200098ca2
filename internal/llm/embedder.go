package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/partvoice-go/internal/config"
)

// maxEmbedRetries bounds automatic retries on transient embedding failures.
// Fatal API errors (auth, quota) are never retried.
const maxEmbedRetries = 2

// Embedder wraps langchaingo embeddings with dimension validation.
type Embedder struct {
	model     embeddings.Embedder
	dimension int
	modelName string
	timeout   time.Duration
}

// NewEmbedder creates an embedder based on configuration.
func NewEmbedder(cfg config.Config) (*Embedder, error) {
	var model embeddings.Embedder
	var err error

	switch cfg.EmbedProvider {
	case config.ProviderOllama:
		llm, ollamaErr := ollama.New(
			ollama.WithModel(cfg.EmbedModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if ollamaErr != nil {
			return nil, fmt.Errorf("create ollama client: %w", ollamaErr)
		}
		model, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		llm, openaiErr := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithEmbeddingModel(cfg.EmbedModel),
		)
		if openaiErr != nil {
			return nil, fmt.Errorf("create openai client: %w", openaiErr)
		}
		model, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create openai embedder: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbedProvider)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Embedder{
		model:     model,
		dimension: cfg.EmbedDimension,
		modelName: cfg.EmbedModel,
		timeout:   timeout,
	}, nil
}

// Embed generates an embedding vector for text. Each attempt is bounded by
// the configured request timeout. Transient backend failures are retried a
// bounded number of times, then reported as ErrEmbeddingUnavailable.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	textLen := len(text)
	slog.Debug("embedding text", "model", e.modelName, "text_len", textLen)

	var lastErr error
	for attempt := 0; attempt <= maxEmbedRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, ctx.Err())
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		vectors, err := e.model.EmbedDocuments(attemptCtx, []string{text})
		cancel()
		duration := time.Since(start)

		if err != nil {
			lastErr = wrapFatalError(err)
			slog.Warn("embedding failed",
				"model", e.modelName, "text_len", textLen,
				"attempt", attempt, "duration_ms", duration.Milliseconds(), "error", err)
			if errors.Is(lastErr, ErrFatalAPI) {
				return nil, lastErr
			}
			continue
		}

		if len(vectors) == 0 {
			return nil, fmt.Errorf("no embedding returned")
		}
		embedding := vectors[0]
		if len(embedding) != e.dimension {
			return nil, fmt.Errorf("dimension mismatch: got %d, want %d", len(embedding), e.dimension)
		}

		slog.Debug("embedding complete",
			"model", e.modelName, "text_len", textLen, "duration_ms", duration.Milliseconds())
		return embedding, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, lastErr)
}

// Dimension returns the expected embedding dimension.
func (e *Embedder) Dimension() int {
	return e.dimension
}
