package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicateUser means the username is already registered.
	ErrDuplicateUser = errors.New("username already registered")

	// ErrUserNotFound means no user exists with the given username.
	ErrUserNotFound = errors.New("user not found")
)

// User is a registered gateway account.
type User struct {
	// ID is the account's opaque unique identifier.
	ID string

	// Username is the unique login name.
	Username string

	// Email is the account's contact address.
	Email string

	// PasswordHash is the bcrypt hash of the account password. The
	// plaintext never reaches the store.
	PasswordHash string

	// CreatedAt is when the account was registered.
	CreatedAt time.Time
}

// UserStore is the credential storage contract. Implementations must be
// safe for concurrent use.
type UserStore interface {
	// CreateUser registers a new user. The check for an existing username
	// and the insert are atomic; a duplicate returns ErrDuplicateUser.
	CreateUser(ctx context.Context, user *User) error

	// GetUser returns the user with the given username, or
	// ErrUserNotFound.
	GetUser(ctx context.Context, username string) (*User, error)

	// Close releases the store's resources.
	Close() error
}
