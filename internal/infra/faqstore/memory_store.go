package faqstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
)

type answerRecord struct {
	payload   faq.AnswerRecord
	expiresAt time.Time
}

// MemoryStore keeps the answer cache and query log in process memory for tests and dev.
type MemoryStore struct {
	mu      sync.RWMutex
	answers map[string]answerRecord
	queries map[string]*faq.QueryStat
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		answers: make(map[string]answerRecord),
		queries: make(map[string]*faq.QueryStat),
	}
}

// GetAnswer implements faq.Store.
func (s *MemoryStore) GetAnswer(_ context.Context, key string) (faq.AnswerRecord, bool, error) {
	if key == "" {
		return faq.AnswerRecord{}, false, nil
	}
	s.mu.RLock()
	record, ok := s.answers[key]
	s.mu.RUnlock()
	if !ok {
		return faq.AnswerRecord{}, false, nil
	}
	if hasExpired(record.expiresAt) {
		s.mu.Lock()
		delete(s.answers, key)
		s.mu.Unlock()
		return faq.AnswerRecord{}, false, nil
	}
	return record.payload, true, nil
}

// SaveAnswer caches the answer with optional TTL.
func (s *MemoryStore) SaveAnswer(_ context.Context, record faq.AnswerRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := time.Time{}
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	s.answers[record.Key] = answerRecord{payload: record, expiresAt: exp}
	return nil
}

// DeleteAnswer implements faq.Store.
func (s *MemoryStore) DeleteAnswer(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.answers, key)
	s.mu.Unlock()
	return nil
}

// RecordQuery implements faq.Store.
func (s *MemoryStore) RecordQuery(_ context.Context, ev faq.QueryEvent) error {
	if ev.Canonical == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stat, ok := s.queries[ev.Canonical]
	if !ok {
		stat = &faq.QueryStat{Canonical: ev.Canonical}
		s.queries[ev.Canonical] = stat
	}
	stat.Merge(ev)
	return nil
}

// TopQueries returns the most frequent canonical questions.
func (s *MemoryStore) TopQueries(_ context.Context, limit int) ([]faq.TrendingQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = len(s.queries)
	}
	items := make([]faq.TrendingQuery, 0, len(s.queries))
	for canonical, stat := range s.queries {
		display := stat.Display
		if display == "" {
			display = canonical
		}
		items = append(items, faq.TrendingQuery{Query: display, Count: stat.AskedCount})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Query < items[j].Query
		}
		return items[i].Count > items[j].Count
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// QueryStats implements faq.Store.
func (s *MemoryStore) QueryStats(_ context.Context, since time.Time) ([]faq.QueryStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]faq.QueryStat, 0, len(s.queries))
	for _, stat := range s.queries {
		if stat.LastSeen.Before(since) {
			continue
		}
		out = append(out, *stat)
	}
	sortStats(out)
	return out, nil
}

func sortStats(stats []faq.QueryStat) {
	sort.Slice(stats, func(i, j int) bool { return stats[i].Canonical < stats[j].Canonical })
}

func hasExpired(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return ts.Before(time.Now())
}

var _ faq.Store = (*MemoryStore)(nil)
