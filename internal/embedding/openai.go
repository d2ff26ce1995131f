package embedding

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gunter0128/sop-assistant/internal/models"
	"github.com/gunter0128/sop-assistant/pkg/utils"
)

// OpenAIEmbedder embeds text through the OpenAI embeddings API. Each call is
// bounded by a timeout and a fixed retry budget with exponential backoff;
// exhausting the budget surfaces models.ErrEmbeddingUnavailable.
type OpenAIEmbedder struct {
	client        *openai.Client
	model         string
	dimensions    int
	timeout       time.Duration
	maxAttempts   int
	maxInputChars int
	cache         *Cache
}

// OpenAIOptions configures an OpenAIEmbedder.
type OpenAIOptions struct {
	Model         string
	Dimensions    int
	Timeout       time.Duration
	MaxAttempts   int
	MaxInputChars int
	CacheSize     int
}

// NewOpenAIEmbedder creates an embedder for the given API key and options.
func NewOpenAIEmbedder(apiKey string, opts OpenAIOptions) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding: API key is empty")
	}
	if opts.Model == "" {
		opts.Model = string(openai.SmallEmbedding3)
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = 1536
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	var cache *Cache
	if opts.CacheSize > 0 {
		cache = NewCache(opts.CacheSize)
	}
	return &OpenAIEmbedder{
		client:        openai.NewClient(apiKey),
		model:         opts.Model,
		dimensions:    opts.Dimensions,
		timeout:       opts.Timeout,
		maxAttempts:   opts.MaxAttempts,
		maxInputChars: opts.MaxInputChars,
		cache:         cache,
	}, nil
}

// Embed returns the embedding for a single text, consulting the cache first.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		if vec, ok := e.cache.Get(text); ok {
			return vec, nil
		}
	}
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(text, vecs[0])
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in one API request. Inputs are bounded: empty
// texts are rejected and overlong texts truncated before the call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	inputs := make([]string, len(texts))
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("%w: cannot embed empty text", models.ErrEmbeddingUnavailable)
		}
		inputs[i] = utils.Truncate(text, e.maxInputChars)
	}

	var resp openai.EmbeddingResponse
	err := utils.Retry(ctx, e.maxAttempts, func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		var callErr error
		resp, callErr = e.client.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.model),
			Input: inputs,
		})
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", models.ErrEmbeddingUnavailable, len(inputs), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vec := make([]float32, len(item.Embedding))
		copy(vec, item.Embedding)
		utils.NormalizeL2(vec)
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client holds no resources needing release.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
