package auth

import "errors"

var (
	// ErrEmailExists indicates a duplicate email address.
	ErrEmailExists = errors.New("email already exists")
	// ErrUsernameExists indicates a duplicate username.
	ErrUsernameExists = errors.New("username already exists")
	// ErrUserMissing is returned when updating an unknown account.
	ErrUserMissing = errors.New("user not found")
)

// Error codes returned by the service.
const (
	CodeInvalidToken       = "invalid_token"
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailExists        = "email_exists"
	CodeUsernameExists     = "username_exists"
	CodeUserNotFound       = "user_not_found"
	CodeAuthError          = "auth_error"
)
