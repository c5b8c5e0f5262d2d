package auth

import (
	"regexp"
	"time"
)

const (
	maxUsernameLength = 64
	maxPasswordLength = 256
)

var usernameChars = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// User is a registered operator allowed to mutate gadgets.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ValidateCredentials checks signup input before anything is hashed.
// It returns ErrInvalidUsername or ErrInvalidPassword.
func ValidateCredentials(username, password string) error {
	if len(username) == 0 || len(username) > maxUsernameLength || !usernameChars.MatchString(username) {
		return ErrInvalidUsername
	}
	if password == "" || len(password) > maxPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}
