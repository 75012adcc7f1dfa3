package embedder

import (
	"context"
	"hash/fnv"

	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
)

// DeterministicEmbedder avoids network calls by hashing each meaningful term of a text
// into a bag-of-words vector. Texts sharing terms point in similar directions, which keeps
// local clustering useful without an API key.
type DeterministicEmbedder struct {
	dim int
}

// NewDeterministicEmbedder constructs the embedder.
func NewDeterministicEmbedder(dim int) *DeterministicEmbedder {
	if dim <= 0 {
		dim = 64
	}
	return &DeterministicEmbedder{dim: dim}
}

// Embed converts each text into a term-hashed vector.
func (e *DeterministicEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector := make([]float32, e.dim)
		for term := range faq.Terms(text) {
			hash := fnv.New64a()
			_, _ = hash.Write([]byte(term))
			seed := hash.Sum64()
			vector[seed%uint64(e.dim)] += 1
			seed = seed*1099511628211 + 1469598103934665603
			vector[seed%uint64(e.dim)] += 0.5
		}
		vectors[i] = vector
	}
	return vectors, nil
}

var _ faq.Embedder = (*DeterministicEmbedder)(nil)
