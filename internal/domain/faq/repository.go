package faq

import (
	"context"
	"time"
)

// Repository persists entries, categories and feedback.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
	Get(ctx context.Context, id int64) (Entry, bool, error)
	Create(ctx context.Context, entry Entry, embedding []float32) (Entry, error)
	Update(ctx context.Context, entry Entry, embedding []float32) (Entry, bool, error)
	Delete(ctx context.Context, id int64) (bool, error)

	Categories(ctx context.Context) ([]Category, error)
	// EnsureCategory returns the category called name, creating it when missing.
	EnsureCategory(ctx context.Context, name, description string) (Category, error)

	FindExact(ctx context.Context, question string) (Entry, bool, error)
	FindBySemanticHash(ctx context.Context, hash uint64) (Entry, bool, error)
	// FindNearest returns up to limit entries ordered by ascending embedding distance.
	FindNearest(ctx context.Context, embedding []float32, limit int) ([]SimilarityMatch, error)

	// RecordFeedback stores fb and bumps the entry counters, returning the updated entry.
	RecordFeedback(ctx context.Context, fb Feedback) (Entry, bool, error)
	MarkAsked(ctx context.Context, id int64, at time.Time) error

	// Snapshot returns every entry ordered by id. Callers must treat it as read-only.
	Snapshot(ctx context.Context) ([]Entry, error)
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
