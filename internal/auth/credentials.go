package auth

import (
	"context"
	"sync"
)

// CredentialStore is the registry of users. Lookups return (nil, nil) when no
// user matches; errors are reserved for infrastructure failures and ErrDuplicateUser.
type CredentialStore interface {
	UserLookup
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, username, password string) (*User, error)
	Validate(ctx context.Context, username, password string) (*User, error)
}

// UserLookup resolves a user by id. Session stores use it to detect orphaned sessions.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*User, error)
}

// MemoryCredentialStore keeps users in process memory.
type MemoryCredentialStore struct {
	hasher PasswordHasher
	now    Clock

	mu     sync.RWMutex
	byID   map[int64]*User
	byName map[string]int64
	nextID int64
}

// NewMemoryCredentialStore constructs an empty store. Ids start at 1.
func NewMemoryCredentialStore(hasher PasswordHasher, now Clock) *MemoryCredentialStore {
	return &MemoryCredentialStore{
		hasher: hasher,
		now:    clockOrDefault(now),
		byID:   make(map[int64]*User),
		byName: make(map[string]int64),
		nextID: 1,
	}
}

// GetByID returns the user with id.
func (s *MemoryCredentialStore) GetByID(ctx context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	clone := *user
	return &clone, nil
}

// GetByUsername returns the user whose name matches exactly.
func (s *MemoryCredentialStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return nil, nil
	}
	clone := *s.byID[id]
	return &clone, nil
}

// Create registers a new user. The returned record still carries the hash.
func (s *MemoryCredentialStore) Create(ctx context.Context, username, password string) (*User, error) {
	existing, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateUser
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another registration may have claimed the name while hashing.
	if _, taken := s.byName[username]; taken {
		return nil, ErrDuplicateUser
	}
	user := &User{
		ID:           s.nextID,
		Username:     username,
		PasswordHash: hashed,
		CreatedAt:    s.now(),
	}
	s.nextID++
	s.byID[user.ID] = user
	s.byName[username] = user.ID

	clone := *user
	return &clone, nil
}

// Validate returns the user when password matches, nil otherwise.
func (s *MemoryCredentialStore) Validate(ctx context.Context, username, password string) (*User, error) {
	return validateCredentials(ctx, s, s.hasher, username, password)
}

// Len reports the number of registered users.
func (s *MemoryCredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// validateCredentials is shared by every CredentialStore. An unknown username
// returns before any hash comparison happens.
func validateCredentials(ctx context.Context, store CredentialStore, hasher PasswordHasher, username, password string) (*User, error) {
	user, err := store.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	if !hasher.Verify(password, user.PasswordHash) {
		return nil, nil
	}
	return user, nil
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)
