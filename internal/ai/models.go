package ai

import "context"

// Generator produces text completions from a hosted language model.
type Generator interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
	GenerateJSON(ctx context.Context, system, prompt string) (map[string]any, error)
	Model() string
}

// Embedder turns texts into fixed-dimension vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}
