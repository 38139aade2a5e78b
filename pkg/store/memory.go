package store

import (
	"context"
	"sync"
)

// MemoryStore implements UserStore in process memory. All accounts are
// lost when the process exits. It is the default backend and the one the
// test suite uses.
//
// MemoryStore is thread-safe using sync.RWMutex; the mutex makes
// CreateUser's duplicate check and insert atomic.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewMemoryStore creates an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*User),
	}
}

// CreateUser implements UserStore.
func (s *MemoryStore) CreateUser(ctx context.Context, user *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return ErrDuplicateUser
	}

	clone := *user
	s.users[user.Username] = &clone
	return nil
}

// GetUser implements UserStore.
func (s *MemoryStore) GetUser(ctx context.Context, username string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

// Count returns the number of registered users.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Close implements UserStore. It is a no-op for the memory backend.
func (s *MemoryStore) Close() error {
	return nil
}
