package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/yanqian/eldertech-assistant/pkg/errors"
)

// Service exposes authentication workflows.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (UserView, error)
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	ValidateToken(ctx context.Context, token string) (Claims, error)
	Refresh(ctx context.Context, refreshToken string) (LoginResponse, error)
	Profile(ctx context.Context, userID int64) (UserView, error)
	UpdateProfile(ctx context.Context, userID int64, req ProfileUpdate) (UserView, error)
	// Logout revokes the access token in claims and, when given, the refresh token.
	Logout(ctx context.Context, claims Claims, refreshToken string) error
}

type service struct {
	cfg         Config
	repo        Repository
	denylist    TokenDenylist
	adminEmails map[string]struct{}
	logger      *slog.Logger
}

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	maxUsernameLength = 50
	maxFullNameLength = 100
	maxContactLength  = 100
	maxAge            = 130
)

// NewService constructs a Service instance. Accounts registered with one of adminEmails
// may maintain the FAQ knowledge base.
func NewService(cfg Config, repo Repository, denylist TokenDenylist, adminEmails []string, logger *slog.Logger) Service {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		if normalized, err := normalizeEmail(email); err == nil {
			admins[normalized] = struct{}{}
		}
	}
	return &service{
		cfg:         cfg,
		repo:        repo,
		denylist:    denylist,
		adminEmails: admins,
		logger:      logger.With("component", "auth.service"),
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (UserView, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return UserView{}, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid email address", err)
	}
	username, err := normalizeUsername(req.Username)
	if err != nil {
		return UserView{}, apperrors.Wrap(apperrors.CodeInvalidInput, err.Error(), nil)
	}
	fullName, err := normalizeText(req.FullName, "full name", maxFullNameLength)
	if err != nil {
		return UserView{}, apperrors.Wrap(apperrors.CodeInvalidInput, err.Error(), nil)
	}
	if err := validatePassword(req.Password); err != nil {
		return UserView{}, apperrors.Wrap(apperrors.CodeInvalidInput, err.Error(), nil)
	}
	if err := s.ensureUnique(ctx, 0, email, username); err != nil {
		return UserView{}, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserView{}, apperrors.Wrap(CodeAuthError, "failed to hash password", err)
	}
	_, admin := s.adminEmails[email]
	user, err := s.repo.Create(ctx, User{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		IsAdmin:      admin,
		PasswordHash: string(hashed),
	})
	if err != nil {
		return UserView{}, duplicateError(err, "failed to create user")
	}
	s.logger.Info("user registered", "userId", user.ID, "admin", user.IsAdmin)
	return toView(user), nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return LoginResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid email address", err)
	}
	if strings.TrimSpace(req.Password) == "" {
		return LoginResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "password cannot be empty", nil)
	}
	user, found, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return LoginResponse{}, apperrors.Wrap(CodeAuthError, "failed to fetch user", err)
	}
	if !found {
		return LoginResponse{}, apperrors.Wrap(CodeInvalidCredentials, "invalid email or password", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResponse{}, apperrors.Wrap(CodeInvalidCredentials, "invalid email or password", nil)
	}
	return s.buildLoginResponse(user)
}

func (s *service) ValidateToken(ctx context.Context, token string) (Claims, error) {
	if strings.TrimSpace(token) == "" {
		return Claims{}, apperrors.Wrap(CodeInvalidToken, "token missing", nil)
	}
	claims, err := s.parseToken(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenTypeAccess {
		return Claims{}, apperrors.Wrap(CodeInvalidToken, "token type mismatch", nil)
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

func (s *service) Profile(ctx context.Context, userID int64) (UserView, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return UserView{}, err
	}
	return toView(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, userID int64, req ProfileUpdate) (UserView, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return UserView{}, err
	}
	if req.Email != nil {
		email, err := normalizeEmail(*req.Email)
		if err != nil {
			return UserView{}, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid email address", err)
		}
		user.Email = email
	}
	if req.Username != nil {
		username, err := normalizeUsername(*req.Username)
		if err != nil {
			return UserView{}, apperrors.Wrap(apperrors.CodeInvalidInput, err.Error(), nil)
		}
		user.Username = username
	}
	if req.FullName != nil {
		fullName, err := normalizeText(*req.FullName, "full name", maxFullNameLength)
		if err != nil {
			return UserView{}, apperrors.Wrap(apperrors.CodeInvalidInput, err.Error(), nil)
		}
		user.FullName = fullName
	}
	if req.EmergencyContact != nil {
		contact, err := normalizeText(*req.EmergencyContact, "emergency contact", maxContactLength)
		if err != nil {
			return UserView{}, apperrors.Wrap(apperrors.CodeInvalidInput, err.Error(), nil)
		}
		user.EmergencyContact = contact
	}
	if req.Age != nil {
		if *req.Age < 0 || *req.Age > maxAge {
			return UserView{}, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("age must be between 0 and %d", maxAge), nil)
		}
		age := *req.Age
		user.Age = &age
	}
	if err := s.ensureUnique(ctx, user.ID, user.Email, user.Username); err != nil {
		return UserView{}, err
	}
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return UserView{}, duplicateError(err, "failed to update profile")
	}
	return toView(updated), nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (LoginResponse, error) {
	claims, err := s.parseToken(refreshToken)
	if err != nil {
		return LoginResponse{}, err
	}
	if claims.TokenType != tokenTypeRefresh {
		return LoginResponse{}, apperrors.Wrap(CodeInvalidToken, "token type mismatch", nil)
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return LoginResponse{}, err
	}
	user, err := s.loadUser(ctx, claims.UserID)
	if err != nil {
		return LoginResponse{}, err
	}
	// Refresh tokens are single use.
	if err := s.revoke(ctx, claims); err != nil {
		return LoginResponse{}, err
	}
	return s.buildLoginResponse(user)
}

func (s *service) Logout(ctx context.Context, claims Claims, refreshToken string) error {
	if err := s.revoke(ctx, claims); err != nil {
		return err
	}
	if strings.TrimSpace(refreshToken) != "" {
		refresh, err := s.parseToken(refreshToken)
		if err != nil {
			return err
		}
		if refresh.UserID != claims.UserID || refresh.TokenType != tokenTypeRefresh {
			return apperrors.Wrap(CodeInvalidToken, "refresh token does not belong to this session", nil)
		}
		if err := s.revoke(ctx, refresh); err != nil {
			return err
		}
	}
	s.logger.Info("user logged out", "userId", claims.UserID)
	return nil
}

func (s *service) loadUser(ctx context.Context, userID int64) (User, error) {
	user, found, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return User{}, apperrors.Wrap(CodeAuthError, "failed to load user", err)
	}
	if !found {
		return User{}, apperrors.Wrap(CodeUserNotFound, "user not found", nil)
	}
	return user, nil
}

// ensureUnique rejects an email or username held by another account than selfID.
func (s *service) ensureUnique(ctx context.Context, selfID int64, email, username string) error {
	existing, exists, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return apperrors.Wrap(CodeAuthError, "failed to check user", err)
	}
	if exists && existing.ID != selfID {
		return apperrors.Wrap(CodeEmailExists, "email already registered", nil)
	}
	existing, exists, err = s.repo.GetByUsername(ctx, username)
	if err != nil {
		return apperrors.Wrap(CodeAuthError, "failed to check user", err)
	}
	if exists && existing.ID != selfID {
		return apperrors.Wrap(CodeUsernameExists, "username already taken", nil)
	}
	return nil
}

func (s *service) checkRevoked(ctx context.Context, claims Claims) error {
	if s.denylist == nil || claims.TokenID == "" {
		return nil
	}
	revoked, err := s.denylist.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return apperrors.Wrap(CodeAuthError, "failed to check token", err)
	}
	if revoked {
		return apperrors.Wrap(CodeInvalidToken, "token revoked", nil)
	}
	return nil
}

func (s *service) revoke(ctx context.Context, claims Claims) error {
	if s.denylist == nil || claims.TokenID == "" {
		return nil
	}
	if err := s.denylist.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return apperrors.Wrap(CodeAuthError, "failed to revoke token", err)
	}
	return nil
}

func (s *service) buildLoginResponse(user User) (LoginResponse, error) {
	access, err := s.generateToken(user, tokenTypeAccess, s.cfg.TokenTTL)
	if err != nil {
		return LoginResponse{}, err
	}
	refresh, err := s.generateToken(user, tokenTypeRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		return LoginResponse{}, err
	}
	return LoginResponse{
		Token:        access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.cfg.TokenTTL.Seconds()),
		User:         toView(user),
	}, nil
}

func (s *service) generateToken(user User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UserID:    user.ID,
		Email:     user.Email,
		Admin:     user.IsAdmin,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        newTokenID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", apperrors.Wrap(CodeAuthError, "failed to sign token", err)
	}
	return signed, nil
}

func (s *service) parseToken(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, apperrors.Wrap(CodeInvalidToken, "token validation failed", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, apperrors.Wrap(CodeInvalidToken, "token invalid", nil)
	}
	if claims.ExpiresAt == nil {
		return Claims{}, apperrors.Wrap(CodeInvalidToken, "token missing expiry", nil)
	}
	if claims.ExpiresAt.Time.Before(time.Now()) {
		return Claims{}, apperrors.Wrap(CodeInvalidToken, "token expired", nil)
	}
	return Claims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		IsAdmin:   claims.Admin,
		TokenType: claims.TokenType,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func duplicateError(err error, fallback string) error {
	switch {
	case errors.Is(err, ErrEmailExists):
		return apperrors.Wrap(CodeEmailExists, "email already registered", err)
	case errors.Is(err, ErrUsernameExists):
		return apperrors.Wrap(CodeUsernameExists, "username already taken", err)
	case errors.Is(err, ErrUserMissing):
		return apperrors.Wrap(CodeUserNotFound, "user not found", err)
	default:
		return apperrors.Wrap(CodeAuthError, fallback, err)
	}
}

func toView(user User) UserView {
	return UserView{
		ID:               user.ID,
		Username:         user.Username,
		Email:            user.Email,
		FullName:         user.FullName,
		Age:              user.Age,
		EmergencyContact: user.EmergencyContact,
		IsAdmin:          user.IsAdmin,
		CreatedAt:        user.CreatedAt,
		UpdatedAt:        user.UpdatedAt,
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(strings.ToLower(raw))
	if email == "" {
		return "", errors.New("email cannot be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", err
	}
	return email, nil
}

func normalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if len([]rune(username)) < 3 {
		return "", errors.New("username must be at least 3 characters")
	}
	if len([]rune(username)) > maxUsernameLength {
		return "", fmt.Errorf("username cannot exceed %d characters", maxUsernameLength)
	}
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' && r != '-' {
			return "", errors.New("username may contain letters, digits, '.', '_' and '-' only")
		}
	}
	return username, nil
}

func normalizeText(raw, field string, limit int) (string, error) {
	value := strings.Join(strings.Fields(raw), " ")
	if len([]rune(value)) > limit {
		return "", fmt.Errorf("%s cannot exceed %d characters", field, limit)
	}
	return value, nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID    int64  `json:"userId"`
	Email     string `json:"email"`
	Admin     bool   `json:"admin,omitempty"`
	TokenType string `json:"type"`
}

func newTokenID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(buf)
}
