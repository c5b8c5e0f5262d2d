package auth

import (
	"context"
	"errors"
	"fmt"
)

// Service registers users and exchanges credentials for bearer tokens.
type Service struct {
	users  UserRepository
	tokens *TokenService

	// dummyHash is verified against when the username is unknown so a
	// failed lookup costs the same as a wrong password.
	dummyHash string
}

// NewService creates an auth service over the given store and token issuer.
func NewService(users UserRepository, tokens *TokenService) (*Service, error) {
	dummy, err := HashPassword("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("preparing dummy hash: %w", err)
	}
	return &Service{users: users, tokens: tokens, dummyHash: dummy}, nil
}

// Tokens returns the token service used for verification.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// Signup validates and stores a new account.
//
// Returns ErrInvalidUsername, ErrInvalidPassword or ErrUsernameExists
// for caller mistakes.
func (s *Service) Signup(ctx context.Context, username, password string) (*User, error) {
	if err := ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{Username: username, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and returns a signed token.
// Unknown users and wrong passwords both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			VerifyPassword(password, s.dummyHash) //nolint:errcheck // timing equalisation only
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("looking up user: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return "", ErrInvalidCredentials
	}

	return s.tokens.Issue(user)
}

// Authenticate verifies a bearer token and returns its claims.
func (s *Service) Authenticate(token string) (*Claims, error) {
	return s.tokens.Parse(token)
}
