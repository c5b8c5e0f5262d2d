// Package auth provides account registration and bearer-token
// authentication for gadgetd.
//
// It implements:
//   - Argon2id password hashing stored in PHC string format
//   - HS256 JWT access tokens whose subject is the user ID
//   - SQLite and Postgres user stores behind one UserRepository interface
//
// Login failures never reveal whether the username exists: unknown users
// and wrong passwords both return ErrInvalidCredentials, and the unknown
// user path still runs a full Argon2id verification.
package auth
