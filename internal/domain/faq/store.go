package faq

import (
	"context"
	"time"
)

// Store holds the generated answer cache and the query log.
type Store interface {
	GetAnswer(ctx context.Context, key string) (AnswerRecord, bool, error)
	SaveAnswer(ctx context.Context, record AnswerRecord, ttl time.Duration) error
	DeleteAnswer(ctx context.Context, key string) error

	// RecordQuery folds a question into the query log and trending counters.
	RecordQuery(ctx context.Context, ev QueryEvent) error
	TopQueries(ctx context.Context, limit int) ([]TrendingQuery, error)
	// QueryStats returns every logged query last seen at or after since.
	QueryStats(ctx context.Context, since time.Time) ([]QueryStat, error)
}
