package userrepo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/eldertech-assistant/internal/domain/auth"
)

func TestMemoryRepositoryUniqueness(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	alice, err := repo.Create(ctx, auth.User{Username: "Alice", Email: "alice@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	require.Equal(t, int64(1), alice.ID)
	require.False(t, alice.CreatedAt.IsZero())

	_, err = repo.Create(ctx, auth.User{Username: "other", Email: "alice@example.com"})
	require.ErrorIs(t, err, auth.ErrEmailExists)
	_, err = repo.Create(ctx, auth.User{Username: "alice", Email: "new@example.com"})
	require.ErrorIs(t, err, auth.ErrUsernameExists)

	found, ok, err := repo.GetByUsername(ctx, "ALICE")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, alice.ID, found.ID)
}

func TestMemoryRepositoryUpdateReindexes(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	alice, err := repo.Create(ctx, auth.User{Username: "alice", Email: "alice@example.com", PasswordHash: "secret", IsAdmin: true})
	require.NoError(t, err)
	_, err = repo.Create(ctx, auth.User{Username: "bob", Email: "bob@example.com"})
	require.NoError(t, err)

	alice.Email = "alice@new.example.com"
	alice.PasswordHash = ""
	alice.IsAdmin = false
	updated, err := repo.Update(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, "secret", updated.PasswordHash)
	require.True(t, updated.IsAdmin)

	_, ok, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = repo.GetByEmail(ctx, "alice@new.example.com")
	require.NoError(t, err)
	require.True(t, ok)

	alice.Username = "bob"
	_, err = repo.Update(ctx, alice)
	require.ErrorIs(t, err, auth.ErrUsernameExists)

	_, err = repo.Update(ctx, auth.User{ID: 42})
	require.ErrorIs(t, err, auth.ErrUserMissing)
}
