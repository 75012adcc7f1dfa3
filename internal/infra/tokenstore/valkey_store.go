package tokenstore

import (
	"context"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/eldertech-assistant/internal/domain/auth"
)

const defaultPrefix = "eldertech:auth"

// ValkeyDenylist stores revoked token ids as keys that expire with the token.
type ValkeyDenylist struct {
	client valkey.Client
	prefix string
}

// NewValkeyDenylist builds a denylist on client.
func NewValkeyDenylist(client valkey.Client, prefix string) *ValkeyDenylist {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultPrefix
	}
	return &ValkeyDenylist{client: client, prefix: prefix}
}

// Revoke denies tokenID until the given expiry.
func (d *ValkeyDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	cmd := d.client.B().Set().Key(d.key(tokenID)).Value("1").Ex(ttl).Build()
	return d.client.Do(ctx, cmd).Error()
}

// IsRevoked reports whether tokenID is still denied.
func (d *ValkeyDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Do(ctx, d.client.B().Exists().Key(d.key(tokenID)).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *ValkeyDenylist) key(tokenID string) string {
	return d.prefix + ":revoked:" + tokenID
}

var _ auth.TokenDenylist = (*ValkeyDenylist)(nil)
