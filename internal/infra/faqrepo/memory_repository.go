package faqrepo

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
)

type memoryEntry struct {
	entry     faq.Entry
	embedding []float32
}

// MemoryRepository keeps the knowledge base in process memory for tests and local runs.
type MemoryRepository struct {
	mu         sync.RWMutex
	nextID     int64
	nextCatID  int64
	nextFbID   int64
	entries    map[int64]*memoryEntry
	categories map[int64]faq.Category
	feedback   []faq.Feedback
}

// NewMemoryRepository constructs a repo backed by memory.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID:     1,
		nextCatID:  1,
		nextFbID:   1,
		entries:    make(map[int64]*memoryEntry),
		categories: make(map[int64]faq.Category),
	}
}

// List implements faq.Repository.
func (r *MemoryRepository) List(_ context.Context, filter faq.ListFilter) ([]faq.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	search := strings.ToLower(filter.Search)
	out := make([]faq.Entry, 0, len(r.entries))
	for _, id := range r.sortedIDs() {
		e := r.entries[id].entry
		if filter.Category != "" && !strings.EqualFold(e.Category, filter.Category) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Question), search) &&
			!strings.Contains(strings.ToLower(e.Answer), search) {
			continue
		}
		out = append(out, r.decorate(e))
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Get implements faq.Repository.
func (r *MemoryRepository) Get(_ context.Context, id int64) (faq.Entry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.entries[id]
	if !ok {
		return faq.Entry{}, false, nil
	}
	return r.decorate(stored.entry), true, nil
}

// Create implements faq.Repository.
func (r *MemoryRepository) Create(_ context.Context, entry faq.Entry, embedding []float32) (faq.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = r.nextID
	entry.Priority = priorityOrDefault(entry.Priority)
	r.nextID++
	r.entries[entry.ID] = &memoryEntry{entry: cloneEntry(entry), embedding: append([]float32(nil), embedding...)}
	return r.decorate(entry), nil
}

// Update implements faq.Repository. Counters are preserved; a nil embedding keeps the old one.
func (r *MemoryRepository) Update(_ context.Context, entry faq.Entry, embedding []float32) (faq.Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.entries[entry.ID]
	if !ok {
		return faq.Entry{}, false, nil
	}
	entry.HelpfulCount = stored.entry.HelpfulCount
	entry.UnhelpfulCount = stored.entry.UnhelpfulCount
	entry.AskCount = stored.entry.AskCount
	entry.LastAskedAt = stored.entry.LastAskedAt
	entry.Priority = priorityOrDefault(entry.Priority)
	stored.entry = cloneEntry(entry)
	if embedding != nil {
		stored.embedding = append([]float32(nil), embedding...)
	}
	return r.decorate(stored.entry), true, nil
}

// Delete implements faq.Repository.
func (r *MemoryRepository) Delete(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false, nil
	}
	delete(r.entries, id)
	return true, nil
}

// Categories implements faq.Repository.
func (r *MemoryRepository) Categories(_ context.Context) ([]faq.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[int64]int64)
	for _, stored := range r.entries {
		counts[stored.entry.CategoryID]++
	}
	out := make([]faq.Category, 0, len(r.categories))
	for _, c := range r.categories {
		c.FAQCount = counts[c.ID]
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// EnsureCategory implements faq.Repository.
func (r *MemoryRepository) EnsureCategory(_ context.Context, name, description string) (faq.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.categories {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	c := faq.Category{ID: r.nextCatID, Name: name, Description: description, CreatedAt: time.Now().UTC()}
	r.nextCatID++
	r.categories[c.ID] = c
	return c, nil
}

// FindExact implements faq.Repository using the normalized question text.
func (r *MemoryRepository) FindExact(_ context.Context, question string) (faq.Entry, bool, error) {
	key := faq.NormalizeQuestion(question)
	if key == "" {
		return faq.Entry{}, false, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.sortedIDs() {
		e := r.entries[id].entry
		if faq.NormalizeQuestion(e.Question) == key {
			return r.decorate(e), true, nil
		}
	}
	return faq.Entry{}, false, nil
}

// FindBySemanticHash implements faq.Repository.
func (r *MemoryRepository) FindBySemanticHash(_ context.Context, hash uint64) (faq.Entry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.sortedIDs() {
		e := r.entries[id].entry
		if e.SemanticHash != nil && *e.SemanticHash == hash {
			return r.decorate(e), true, nil
		}
	}
	return faq.Entry{}, false, nil
}

// FindNearest implements faq.Repository with a linear scan. Entries without embeddings
// are skipped.
func (r *MemoryRepository) FindNearest(_ context.Context, embedding []float32, limit int) ([]faq.SimilarityMatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []faq.SimilarityMatch
	for _, stored := range r.entries {
		if len(stored.embedding) == 0 {
			continue
		}
		out = append(out, faq.SimilarityMatch{
			Entry:    r.decorate(stored.entry),
			Distance: euclideanDistance(embedding, stored.embedding),
		})
	}
	return nearest(out, limit), nil
}

// RecordFeedback implements faq.Repository.
func (r *MemoryRepository) RecordFeedback(_ context.Context, fb faq.Feedback) (faq.Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.entries[fb.EntryID]
	if !ok {
		return faq.Entry{}, false, nil
	}
	fb.ID = r.nextFbID
	r.nextFbID++
	r.feedback = append(r.feedback, fb)
	if fb.Helpful {
		stored.entry.HelpfulCount++
	} else {
		stored.entry.UnhelpfulCount++
	}
	return r.decorate(stored.entry), true, nil
}

// MarkAsked implements faq.Repository.
func (r *MemoryRepository) MarkAsked(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.entries[id]; ok {
		stored.entry.AskCount++
		if at.After(stored.entry.LastAskedAt) {
			stored.entry.LastAskedAt = at
		}
	}
	return nil
}

// Snapshot implements faq.Repository.
func (r *MemoryRepository) Snapshot(_ context.Context) ([]faq.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]faq.Entry, 0, len(r.entries))
	for _, id := range r.sortedIDs() {
		out = append(out, r.decorate(r.entries[id].entry))
	}
	return out, nil
}

// sortedIDs must be called with the lock held.
func (r *MemoryRepository) sortedIDs() []int64 {
	ids := make([]int64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// decorate copies e and fills the category name. Must be called with the lock held.
func (r *MemoryRepository) decorate(e faq.Entry) faq.Entry {
	out := cloneEntry(e)
	if c, ok := r.categories[e.CategoryID]; ok {
		out.Category = c.Name
	}
	return out
}

func cloneEntry(e faq.Entry) faq.Entry {
	e.Tags = append([]string{}, e.Tags...)
	if e.SemanticHash != nil {
		hash := *e.SemanticHash
		e.SemanticHash = &hash
	}
	return e
}

func nearest(matches []faq.SimilarityMatch, limit int) []faq.SimilarityMatch {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Entry.ID < matches[j].Entry.ID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func euclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		diff := float64(a[i] - b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

var _ faq.Repository = (*MemoryRepository)(nil)
