package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/talent-ranker/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// maxEmbedBatch is the largest number of inputs accepted by one batch call.
const maxEmbedBatch = 100

type embedModels interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder produces sentence embeddings through the Gemini API.
type Embedder struct {
	models     embedModels
	model      string
	maxRetries int
	logger     *zap.Logger
}

// NewEmbedder creates an Embedder configured for the Gemini API backend.
func NewEmbedder(ctx context.Context, cfg Config, log *zap.Logger) (*Embedder, error) {
	client, err := newClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(cfg.EmbeddingModel)
	if model == "" {
		model = defaultEmbeddingModel
	}

	return newEmbedder(client.Models, model, cfg, log), nil
}

func newEmbedder(models embedModels, model string, cfg Config, log *zap.Logger) *Embedder {
	e := &Embedder{
		models:     models,
		model:      model,
		maxRetries: cfg.MaxRetries,
	}
	if e.maxRetries <= 0 {
		e.maxRetries = defaultMaxRetries
	}
	e.logger = logger.WithCommonFields(log, providerName, model)
	return e
}

// Model returns the configured embedding model name.
func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return e.model
}

// Embed returns one vector per input text, preserving order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e == nil || e.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: text}},
		})
	}

	config := &genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"}

	var resp *genai.EmbedContentResponse
	err := withRetry(ctx, e.logger, e.maxRetries, func() error {
		var callErr error
		resp, callErr = e.models.EmbedContent(ctx, e.model, contents, config)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("embed content: expected %d embeddings, got %d", len(texts), got)
	}

	vectors := make([][]float32, len(texts))
	for i, embedding := range resp.Embeddings {
		if embedding == nil || len(embedding.Values) == 0 {
			return nil, fmt.Errorf("embed content: empty embedding at index %d", i)
		}
		vectors[i] = embedding.Values
	}

	e.logger.Debug("gemini embeddings computed", zap.Int("inputs", len(texts)))
	return vectors, nil
}
