package semantic

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	hashingModel      = "feature-hashing"
	defaultDimensions = 384
)

// HashingEmbedder is a deterministic, offline sentence embedder. Word unigrams
// and bigrams are hashed into a fixed number of signed buckets and the vector
// is L2-normalised.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder returns an embedder producing vectors of dims entries.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = defaultDimensions
	}
	return &HashingEmbedder{dims: dims}
}

// Model names the embedding scheme.
func (h *HashingEmbedder) Model() string { return hashingModel }

// Embed returns one vector per text.
func (h *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = h.vector(text)
	}
	return vectors, nil
}

func (h *HashingEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dims)
	tokens := tokenize(text)

	for i, tok := range tokens {
		h.add(v, tok, 1)
		if i > 0 {
			h.add(v, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (h *HashingEmbedder) add(v []float32, feature string, weight float32) {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum32()

	idx := int(sum % uint32(h.dims))
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	v[idx] += weight
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > 1 || f == "c" || f == "r" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
