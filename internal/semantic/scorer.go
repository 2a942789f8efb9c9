// Package semantic scores how closely resume text matches a target text using
// chunk embeddings.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spigell/talent-ranker/internal/ai"
	"github.com/spigell/talent-ranker/internal/logger"
	"go.uber.org/zap"
)

// ErrEmbeddingUnavailable is returned when vectors could not be produced.
// Callers must surface it instead of substituting a score.
var ErrEmbeddingUnavailable = errors.New("embedding model unavailable")

const (
	defaultChunkSize = 500
	defaultMaxChunks = 24

	ProviderHashing = "hashing"
	ProviderGemini  = "gemini"
)

// Config controls chunking and the embedding provider.
type Config struct {
	Provider   string `mapstructure:"provider"`
	ChunkSize  int    `mapstructure:"chunk-size"`
	MaxChunks  int    `mapstructure:"max-chunks"`
	Dimensions int    `mapstructure:"dimensions"`
	CacheSize  int    `mapstructure:"cache-size"`
}

// ChunkMatch is one resume chunk with its best similarity to the target.
type ChunkMatch struct {
	Text        string
	Similarity  float64
	TargetIndex int
}

// Result is the semantic score of one resume.
type Result struct {
	Score  float64
	Chunks []ChunkMatch
}

// Target is a chunked and embedded target text, reused across resumes.
type Target struct {
	Text    string
	Chunks  []string
	vectors [][]float32
}

// Scorer computes semantic scores. It is safe for concurrent use.
type Scorer struct {
	embedder *ai.Handle[ai.Embedder]
	cfg      Config
	timeout  time.Duration
	logger   *zap.Logger
}

// NewScorer creates a scorer. timeout bounds every embedding call.
func NewScorer(embedder *ai.Handle[ai.Embedder], cfg Config, timeout time.Duration, log *zap.Logger) *Scorer {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = defaultMaxChunks
	}
	return &Scorer{embedder: embedder, cfg: cfg, timeout: timeout, logger: logger.OrNop(log)}
}

// PrepareTarget chunks and embeds the target text once per request.
func (s *Scorer) PrepareTarget(ctx context.Context, text string) (*Target, error) {
	chunks := Chunk(text, s.cfg.ChunkSize, s.cfg.MaxChunks)
	if len(chunks) == 0 {
		return nil, errors.New("target text is empty")
	}

	vectors, err := s.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}

	return &Target{Text: text, Chunks: chunks, vectors: vectors}, nil
}

// Score compares resume text with a prepared target. For every resume chunk
// the best matching target chunk is taken; the chunk scores are then averaged
// with weights equal to their squared similarity, so the resume's closest
// region dominates. An empty resume scores 0 without calling the model.
func (s *Scorer) Score(ctx context.Context, target *Target, resumeText string) (Result, error) {
	if target == nil || len(target.vectors) == 0 {
		return Result{}, errors.New("target is not prepared")
	}

	chunks := Chunk(resumeText, s.cfg.ChunkSize, s.cfg.MaxChunks)
	if len(chunks) == 0 {
		return Result{}, nil
	}

	vectors, err := s.embed(ctx, chunks)
	if err != nil {
		return Result{}, err
	}

	res := Result{Chunks: make([]ChunkMatch, len(chunks))}
	var weighted, weights float64
	for i, v := range vectors {
		best, bestIdx := math.Inf(-1), 0
		for j, t := range target.vectors {
			if sim := Cosine(v, t); sim > best {
				best, bestIdx = sim, j
			}
		}
		res.Chunks[i] = ChunkMatch{Text: chunks[i], Similarity: best, TargetIndex: bestIdx}

		w := math.Max(best, 0)
		w *= w
		weighted += w * best
		weights += w
	}

	if weights > 0 {
		res.Score = clip01(weighted / weights)
	}
	return res, nil
}

// Embed embeds arbitrary texts with the scorer's model and timeout.
func (s *Scorer) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return s.embed(ctx, texts)
}

func (s *Scorer) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	embedder, err := s.embedder.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, ctxErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrEmbeddingUnavailable, len(texts), len(vectors))
	}

	s.logger.Debug("chunks embedded",
		zap.Int("chunks", len(texts)),
		zap.String(logger.FieldModel, embedder.Model()),
	)
	return vectors, nil
}

// Cosine returns the cosine similarity of two vectors, or 0 when either is
// zero or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clip01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// ProviderName normalises a configured provider name.
func ProviderName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ProviderHashing
	}
	return name
}
