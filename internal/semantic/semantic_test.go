package semantic

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/spigell/talent-ranker/internal/ai"
)

type tableEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   [][]string
	err     error
}

func (f *tableEmbedder) Model() string { return "table" }

func (f *tableEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, ok := f.vectors[text]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

func TestChunk(t *testing.T) {
	t.Parallel()

	if got := Chunk("   ", 10, 5); got != nil {
		t.Fatalf("expected no chunks, got %v", got)
	}

	got := Chunk("Alpha beta. Gamma delta. Epsilon", 12, 0)
	want := []string{"Alpha beta.", "Gamma delta.", "Epsilon."}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if got := Chunk("no sentence end at all", 5, 0); len(got) != 1 || got[0] != "no sentence end at all." {
		t.Fatalf("unexpected single chunk: %v", got)
	}

	long := strings.Repeat("This sentence is filler text. ", 400)
	if got := Chunk(long, 50, 8); len(got) > 8 {
		t.Fatalf("expected at most 8 chunks, got %d", len(got))
	}
}

func TestHashingEmbedderIsDeterministicAndNormalised(t *testing.T) {
	t.Parallel()

	h := NewHashingEmbedder(64)
	vecs, err := h.Embed(context.Background(), []string{"Go backend engineer", "Go backend engineer", "pastry chef croissants"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs[0]) != 64 {
		t.Fatalf("expected 64 dimensions, got %d", len(vecs[0]))
	}
	if Cosine(vecs[0], vecs[1]) < 0.9999 {
		t.Fatal("same text must produce the same vector")
	}

	var norm float64
	for _, x := range vecs[0] {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit vector, got norm %v", norm)
	}

	related, _ := h.Embed(context.Background(), []string{"senior Go backend engineer"})
	if Cosine(vecs[0], related[0]) <= Cosine(vecs[0], vecs[2]) {
		t.Fatal("overlapping text must be more similar than unrelated text")
	}
}

func TestCachedEmbedderReusesVectors(t *testing.T) {
	t.Parallel()

	inner := &tableEmbedder{vectors: map[string][]float32{"a": {1, 0, 0}, "b": {0, 1, 0}, "c": {1, 1, 0}}}
	cache := NewCachedEmbedder(inner, 2).(*CachedEmbedder)

	if _, err := cache.Embed(context.Background(), []string{"a", "b", "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.calls) != 1 || len(inner.calls[0]) != 2 {
		t.Fatalf("expected one call with two distinct texts, got %v", inner.calls)
	}

	out, err := cache.Embed(context.Background(), []string{"b", "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.calls) != 1 || out[0][1] != 1 {
		t.Fatal("expected cached vectors to be served")
	}

	if _, err := cache.Embed(context.Background(), []string{"c"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.Len() != 2 {
		t.Fatalf("expected cache bounded to 2, got %d", cache.Len())
	}

	if _, err := cache.Embed(context.Background(), []string{"b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.calls) != 3 {
		t.Fatalf("expected least recently used entry to be evicted, calls=%v", inner.calls)
	}
}

func TestScoreWeightsTowardsClosestRegion(t *testing.T) {
	t.Parallel()

	inner := &tableEmbedder{vectors: map[string][]float32{
		"Go services.": {1, 0, 0},
		"Chess.":       {0, 1, 0},
	}}
	scorer := NewScorer(ai.Ready[ai.Embedder](inner), Config{ChunkSize: 5}, 0, nil)

	target, err := scorer.PrepareTarget(context.Background(), "Go services.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	focused, err := scorer.Score(context.Background(), target, "Go services.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(focused.Score-1) > 1e-9 {
		t.Fatalf("expected perfect score, got %v", focused.Score)
	}

	mixed, err := scorer.Score(context.Background(), target, "Go services. Chess.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(mixed.Score-1) > 1e-9 {
		t.Fatalf("unrelated chunks must not dilute the score, got %v", mixed.Score)
	}
	if len(mixed.Chunks) != 2 || mixed.Chunks[1].Similarity != 0 {
		t.Fatalf("unexpected chunk matches: %+v", mixed.Chunks)
	}

	unrelated, _ := scorer.Score(context.Background(), target, "Chess.")
	if unrelated.Score != 0 {
		t.Fatalf("expected zero score, got %v", unrelated.Score)
	}
}

func TestScoreEmptyResumeSkipsModel(t *testing.T) {
	t.Parallel()

	inner := &tableEmbedder{}
	scorer := NewScorer(ai.Ready[ai.Embedder](inner), Config{}, 0, nil)
	target, err := scorer.PrepareTarget(context.Background(), "Backend role.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := scorer.Score(context.Background(), target, "  ")
	if err != nil || res.Score != 0 {
		t.Fatalf("expected zero score, got %v (%v)", res.Score, err)
	}
	if len(inner.calls) != 1 {
		t.Fatalf("expected only the target to be embedded, got %d calls", len(inner.calls))
	}
}

func TestScoreSurfacesUnavailableEmbedder(t *testing.T) {
	t.Parallel()

	failing := ai.NewHandle(func(context.Context) (ai.Embedder, error) {
		return nil, errors.New("no api key")
	})
	scorer := NewScorer(failing, Config{}, 0, nil)
	if _, err := scorer.PrepareTarget(context.Background(), "Backend role."); !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}

	broken := &tableEmbedder{err: errors.New("boom")}
	scorer = NewScorer(ai.Ready[ai.Embedder](broken), Config{}, 0, nil)
	if _, err := scorer.PrepareTarget(context.Background(), "Backend role."); !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestNewEmbedderHandle(t *testing.T) {
	t.Parallel()

	h, err := NewEmbedderHandle(Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e, err := h.Get(context.Background())
	if err != nil || e.Model() != hashingModel {
		t.Fatalf("expected hashing embedder, got %v (%v)", e, err)
	}

	if _, err := NewEmbedderHandle(Config{Provider: "gemini"}, nil); err == nil {
		t.Fatal("expected error without gemini factory")
	}
	if _, err := NewEmbedderHandle(Config{Provider: "word2vec"}, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
