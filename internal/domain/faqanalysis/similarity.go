package faqanalysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
)

// Engine scores question similarity in [0,1]. It prefers embeddings and falls back to
// lexical term overlap when no embedder is configured or the provider fails.
type Engine struct {
	embedder faq.Embedder
	logger   *slog.Logger
}

// NewEngine builds an Engine. embedder may be nil for lexical-only scoring.
func NewEngine(embedder faq.Embedder, logger *slog.Logger) *Engine {
	return &Engine{embedder: embedder, logger: logger.With("component", "faqanalysis.similarity")}
}

// Index holds per-text features so pairs can be scored without further I/O.
type Index struct {
	terms   []map[string]struct{}
	vectors [][]float32
}

// Lexical reports whether scores come from term overlap instead of embeddings.
func (ix *Index) Lexical() bool {
	return ix.vectors == nil
}

// Len is the number of indexed texts.
func (ix *Index) Len() int {
	return len(ix.terms)
}

// Score returns the similarity of texts i and j. Texts without a meaningful token score 0.
func (ix *Index) Score(i, j int) float64 {
	if len(ix.terms[i]) == 0 || len(ix.terms[j]) == 0 {
		return 0
	}
	if ix.vectors == nil {
		return faq.Jaccard(ix.terms[i], ix.terms[j])
	}
	return cosine(ix.vectors[i], ix.vectors[j])
}

// Index embeds texts in one batch. degraded is true when the provider failed and the
// index fell back to lexical scoring. The only errors returned come from ctx.
func (e *Engine) Index(ctx context.Context, texts []string) (ix *Index, degraded bool, err error) {
	ix = &Index{terms: make([]map[string]struct{}, len(texts))}
	var (
		batch     []string
		positions []int
	)
	for i, text := range texts {
		ix.terms[i] = faq.Terms(text)
		if len(ix.terms[i]) > 0 {
			batch = append(batch, text)
			positions = append(positions, i)
		}
	}
	if e.embedder == nil || len(batch) == 0 {
		return ix, false, nil
	}

	vectors, err := e.embedder.Embed(ctx, batch)
	if err == nil {
		err = validateVectors(vectors, len(batch))
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		e.logger.Warn("embedding provider unavailable, using lexical similarity", "texts", len(batch), "error", err)
		return ix, true, nil
	}

	ix.vectors = make([][]float32, len(texts))
	for k, pos := range positions {
		ix.vectors[pos] = vectors[k]
	}
	return ix, false, nil
}

// Compare scores two standalone questions.
func (e *Engine) Compare(ctx context.Context, a, b string) (float64, error) {
	ix, _, err := e.Index(ctx, []string{a, b})
	if err != nil {
		return 0, err
	}
	return ix.Score(0, 1), nil
}

func validateVectors(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), want)
	}
	dims := -1
	for _, v := range vectors {
		if len(v) == 0 {
			return errors.New("embedder returned an empty vector")
		}
		if dims >= 0 && len(v) != dims {
			return errors.New("embedder returned vectors of mixed dimensions")
		}
		dims = len(v)
	}
	return nil
}

// cosine is clamped to [0,1]; opposite or zero vectors score 0.
func cosine(a, b []float32) float64 {
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
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	switch {
	case math.IsNaN(s) || s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}
