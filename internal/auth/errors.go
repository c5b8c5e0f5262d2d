package auth

import "errors"

// Caller mistakes.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidUsername    = errors.New("username must be 1-64 characters of letters, digits, '.', '_' or '-'")
	ErrInvalidPassword    = errors.New("password must be between 1 and 256 characters")
	ErrUsernameExists     = errors.New("username already exists")
)

// Store and token failures.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrTokenExpired  = errors.New("token has expired")
	ErrTokenInvalid  = errors.New("invalid token")
	ErrMalformedHash = errors.New("malformed password hash")
)
