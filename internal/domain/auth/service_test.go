package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/eldertech-assistant/pkg/errors"
	"github.com/yanqian/eldertech-assistant/pkg/logger"
)

func newTestService(admins ...string) (Service, *memoryRepo, *memoryDenylist) {
	repo := newMemoryRepo()
	denylist := newMemoryDenylist()
	svc := NewService(Config{
		Secret:          "test-secret",
		TokenTTL:        time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}, repo, denylist, admins, logger.Discard())
	return svc, repo, denylist
}

func TestService_RegisterLoginAndRefresh(t *testing.T) {
	svc, _, _ := newTestService()

	view, err := svc.Register(context.Background(), RegisterRequest{
		Username: "margaret",
		Email:    "Margaret@Example.com",
		Password: "pass1234",
		FullName: "  Margaret   Smith ",
	})
	require.NoError(t, err)
	require.Equal(t, "margaret@example.com", view.Email)
	require.Equal(t, "margaret", view.Username)
	require.Equal(t, "Margaret Smith", view.FullName)
	require.False(t, view.IsAdmin)
	require.NotZero(t, view.ID)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "margaret@example.com",
		Password: "pass1234",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, "bearer", resp.TokenType)
	require.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)
	require.Equal(t, view.ID, claims.UserID)
	require.NotEmpty(t, claims.TokenID)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)

	refreshed, err := svc.Refresh(context.Background(), resp.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, resp.Token, refreshed.Token)

	_, err = svc.Refresh(context.Background(), resp.RefreshToken)
	require.True(t, apperrors.IsCode(err, CodeInvalidToken), "refresh tokens are single use")

	_, err = svc.Refresh(context.Background(), resp.Token)
	require.True(t, apperrors.IsCode(err, CodeInvalidToken))
}

func TestService_RejectsBadCredentials(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Register(context.Background(), RegisterRequest{Username: "george", Email: "g@example.com", Password: "pass1234"})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{Email: "g@example.com", Password: "wrong-pass"})
	require.True(t, apperrors.IsCode(err, CodeInvalidCredentials))
	_, err = svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "pass1234"})
	require.True(t, apperrors.IsCode(err, CodeInvalidCredentials))
	_, err = svc.Login(context.Background(), LoginRequest{Email: "g@example.com"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}

func TestService_RegisterValidation(t *testing.T) {
	cases := []struct {
		name string
		req  RegisterRequest
	}{
		{"bad email", RegisterRequest{Username: "alice", Email: "not-an-email", Password: "pass1234"}},
		{"short username", RegisterRequest{Username: "al", Email: "a@example.com", Password: "pass1234"}},
		{"username symbols", RegisterRequest{Username: "al ice!", Email: "a@example.com", Password: "pass1234"}},
		{"short password", RegisterRequest{Username: "alice", Email: "a@example.com", Password: "short"}},
		{"long full name", RegisterRequest{Username: "alice", Email: "a@example.com", Password: "pass1234", FullName: strings.Repeat("x", 101)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := newTestService()
			_, err := svc.Register(context.Background(), tc.req)
			require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput), "got %v", err)
		})
	}
}

func TestService_DuplicateAccounts(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Register(context.Background(), RegisterRequest{Username: "alice", Email: "user@example.com", Password: "pass1234"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{Username: "alice2", Email: "user@example.com", Password: "pass12345"})
	require.True(t, apperrors.IsCode(err, CodeEmailExists))
	require.Contains(t, err.Error(), "already registered")

	_, err = svc.Register(context.Background(), RegisterRequest{Username: "alice", Email: "other@example.com", Password: "pass12345"})
	require.True(t, apperrors.IsCode(err, CodeUsernameExists))
}

func TestService_AdminEmails(t *testing.T) {
	svc, _, _ := newTestService("Admin@ElderTech.org")
	view, err := svc.Register(context.Background(), RegisterRequest{Username: "admin", Email: "admin@eldertech.org", Password: "pass1234"})
	require.NoError(t, err)
	require.True(t, view.IsAdmin)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "admin@eldertech.org", Password: "pass1234"})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)
	require.True(t, claims.IsAdmin)
}

func TestService_UpdateProfile(t *testing.T) {
	svc, _, _ := newTestService()
	first, err := svc.Register(context.Background(), RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pass1234"})
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "pass1234"})
	require.NoError(t, err)

	age := 78
	contact := "Daughter: 555-0100"
	name := "Alice Jones"
	updated, err := svc.UpdateProfile(context.Background(), first.ID, ProfileUpdate{Age: &age, EmergencyContact: &contact, FullName: &name})
	require.NoError(t, err)
	require.Equal(t, 78, *updated.Age)
	require.Equal(t, contact, updated.EmergencyContact)
	require.Equal(t, "alice", updated.Username)

	taken := "bob"
	_, err = svc.UpdateProfile(context.Background(), first.ID, ProfileUpdate{Username: &taken})
	require.True(t, apperrors.IsCode(err, CodeUsernameExists))

	same := "ALICE@example.com"
	_, err = svc.UpdateProfile(context.Background(), first.ID, ProfileUpdate{Email: &same})
	require.NoError(t, err)

	badAge := 200
	_, err = svc.UpdateProfile(context.Background(), first.ID, ProfileUpdate{Age: &badAge})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	_, err = svc.UpdateProfile(context.Background(), 999, ProfileUpdate{})
	require.True(t, apperrors.IsCode(err, CodeUserNotFound))
}

func TestService_LogoutRevokesTokens(t *testing.T) {
	svc, _, denylist := newTestService()
	_, err := svc.Register(context.Background(), RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pass1234"})
	require.NoError(t, err)
	resp, err := svc.Login(context.Background(), LoginRequest{Email: "alice@example.com", Password: "pass1234"})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), claims, resp.RefreshToken))
	require.Len(t, denylist.revoked, 2)

	_, err = svc.ValidateToken(context.Background(), resp.Token)
	require.True(t, apperrors.IsCode(err, CodeInvalidToken))
	require.Contains(t, err.Error(), "revoked")
	_, err = svc.Refresh(context.Background(), resp.RefreshToken)
	require.True(t, apperrors.IsCode(err, CodeInvalidToken))
}

func TestService_ValidateTokenRejectsForeignSignature(t *testing.T) {
	svc, _, _ := newTestService()
	other := NewService(Config{Secret: "other", TokenTTL: time.Hour, RefreshTokenTTL: time.Hour}, newMemoryRepo(), nil, nil, logger.Discard())
	_, err := other.Register(context.Background(), RegisterRequest{Username: "eve", Email: "eve@example.com", Password: "pass1234"})
	require.NoError(t, err)
	resp, err := other.Login(context.Background(), LoginRequest{Email: "eve@example.com", Password: "pass1234"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), resp.Token)
	require.True(t, apperrors.IsCode(err, CodeInvalidToken))
	_, err = svc.ValidateToken(context.Background(), " ")
	require.True(t, apperrors.IsCode(err, CodeInvalidToken))
}

type memoryRepo struct {
	users map[int64]User
	seq   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]User)}
}

func (m *memoryRepo) Create(_ context.Context, user User) (User, error) {
	m.seq++
	user.ID = m.seq
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryRepo) GetByEmail(_ context.Context, email string) (User, bool, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, true, nil
		}
	}
	return User{}, false, nil
}

func (m *memoryRepo) GetByUsername(_ context.Context, username string) (User, bool, error) {
	for _, user := range m.users {
		if strings.EqualFold(user.Username, username) {
			return user, true, nil
		}
	}
	return User{}, false, nil
}

func (m *memoryRepo) GetByID(_ context.Context, id int64) (User, bool, error) {
	user, ok := m.users[id]
	return user, ok, nil
}

func (m *memoryRepo) Update(_ context.Context, user User) (User, error) {
	user.UpdatedAt = time.Now()
	m.users[user.ID] = user
	return user, nil
}

type memoryDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func newMemoryDenylist() *memoryDenylist {
	return &memoryDenylist{revoked: make(map[string]time.Time)}
}

func (d *memoryDenylist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[tokenID] = until
	return nil
}

func (d *memoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.revoked[tokenID]
	return ok, nil
}
