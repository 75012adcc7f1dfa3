package reportstore

import (
	"context"
	"sync"

	"github.com/yanqian/eldertech-assistant/internal/domain/faqanalysis"
)

// MemoryStore keeps the latest report in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	latest *faqanalysis.Report
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save replaces the latest report.
func (s *MemoryStore) Save(_ context.Context, report faqanalysis.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &report
	return nil
}

// Latest returns the most recently saved report.
func (s *MemoryStore) Latest(_ context.Context) (faqanalysis.Report, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return faqanalysis.Report{}, false, nil
	}
	return *s.latest, true, nil
}

var _ faqanalysis.ReportStore = (*MemoryStore)(nil)
