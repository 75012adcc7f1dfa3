package userrepo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/yanqian/eldertech-assistant/internal/domain/auth"
)

// MemoryRepository provides an in-memory user store for tests/dev.
type MemoryRepository struct {
	mu            sync.RWMutex
	users         map[int64]auth.User
	emailIndex    map[string]int64
	usernameIndex map[string]int64
	seq           int64
}

// NewMemoryRepository constructs a new in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:         make(map[int64]auth.User),
		emailIndex:    make(map[string]int64),
		usernameIndex: make(map[string]int64),
	}
}

// Create stores the user record.
func (r *MemoryRepository) Create(_ context.Context, user auth.User) (auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.emailIndex[user.Email]; exists {
		return auth.User{}, auth.ErrEmailExists
	}
	if _, exists := r.usernameIndex[usernameKey(user.Username)]; exists {
		return auth.User{}, auth.ErrUsernameExists
	}
	r.seq++
	now := time.Now().UTC()
	user.ID = r.seq
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	r.emailIndex[user.Email] = user.ID
	r.usernameIndex[usernameKey(user.Username)] = user.ID
	return user, nil
}

// GetByEmail returns a user by email.
func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (auth.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.emailIndex[email]; ok {
		return r.users[id], true, nil
	}
	return auth.User{}, false, nil
}

// GetByUsername returns a user by username, ignoring case.
func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (auth.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.usernameIndex[usernameKey(username)]; ok {
		return r.users[id], true, nil
	}
	return auth.User{}, false, nil
}

// GetByID fetches by ID.
func (r *MemoryRepository) GetByID(_ context.Context, id int64) (auth.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	return user, ok, nil
}

// Update replaces the profile fields of an existing user.
func (r *MemoryRepository) Update(_ context.Context, user auth.User) (auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.users[user.ID]
	if !ok {
		return auth.User{}, auth.ErrUserMissing
	}
	if id, exists := r.emailIndex[user.Email]; exists && id != user.ID {
		return auth.User{}, auth.ErrEmailExists
	}
	if id, exists := r.usernameIndex[usernameKey(user.Username)]; exists && id != user.ID {
		return auth.User{}, auth.ErrUsernameExists
	}
	delete(r.emailIndex, current.Email)
	delete(r.usernameIndex, usernameKey(current.Username))
	user.CreatedAt = current.CreatedAt
	user.PasswordHash = current.PasswordHash
	user.IsAdmin = current.IsAdmin
	user.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = user
	r.emailIndex[user.Email] = user.ID
	r.usernameIndex[usernameKey(user.Username)] = user.ID
	return user, nil
}

var _ auth.Repository = (*MemoryRepository)(nil)

func usernameKey(username string) string {
	return strings.ToLower(username)
}
