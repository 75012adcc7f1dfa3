package tokenstore

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/eldertech-assistant/internal/domain/auth"
)

// MemoryDenylist keeps revoked token ids in process memory until they expire.
type MemoryDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryDenylist constructs an empty denylist.
func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{revoked: make(map[string]time.Time), now: time.Now}
}

// Revoke denies tokenID until the given expiry.
func (d *MemoryDenylist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked()
	d.revoked[tokenID] = until
	return nil
}

// IsRevoked reports whether tokenID is still denied.
func (d *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	until, ok := d.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !until.IsZero() && d.now().After(until) {
		delete(d.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

func (d *MemoryDenylist) pruneLocked() {
	now := d.now()
	for id, until := range d.revoked {
		if !until.IsZero() && now.After(until) {
			delete(d.revoked, id)
		}
	}
}

var _ auth.TokenDenylist = (*MemoryDenylist)(nil)
