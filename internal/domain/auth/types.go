package auth

import "time"

// Config drives authentication behavior.
type Config struct {
	Secret          string
	TokenTTL        time.Duration
	RefreshTokenTTL time.Duration
}

// User represents a persisted account.
type User struct {
	ID               int64
	Username         string
	Email            string
	FullName         string
	Age              *int
	EmergencyContact string
	IsAdmin          bool
	PasswordHash     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RegisterRequest captures the registration payload.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// LoginRequest captures login details.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse returns the signed tokens.
type LoginResponse struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	TokenType    string   `json:"tokenType"`
	ExpiresIn    int64    `json:"expiresIn"`
	User         UserView `json:"user"`
}

// UserView trims sensitive fields.
type UserView struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	FullName         string    `json:"fullName,omitempty"`
	Age              *int      `json:"age,omitempty"`
	EmergencyContact string    `json:"emergencyContact,omitempty"`
	IsAdmin          bool      `json:"isAdmin"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ProfileUpdate changes only the fields that are set.
type ProfileUpdate struct {
	Username         *string `json:"username"`
	Email            *string `json:"email"`
	FullName         *string `json:"fullName"`
	Age              *int    `json:"age"`
	EmergencyContact *string `json:"emergencyContact"`
}

// Claims are extracted from the JWT token.
type Claims struct {
	UserID    int64
	Email     string
	IsAdmin   bool
	TokenType string
	TokenID   string
	ExpiresAt time.Time
}

// RefreshRequest encapsulates refresh token payload.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}
