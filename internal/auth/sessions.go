package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultSessionTTL matches the cookie lifetime set by the HTTP layer.
	DefaultSessionTTL = 7 * 24 * time.Hour

	sessionTokenBytes = 32
)

// SessionStore creates, resolves and invalidates session tokens. Get returns
// (nil, nil) for unknown, expired or orphaned sessions and purges the latter two.
type SessionStore interface {
	Create(ctx context.Context, userID int64) (string, error)
	Get(ctx context.Context, id string) (*SessionData, error)
	Delete(ctx context.Context, id string) error
	SweepExpired(ctx context.Context) (int, error)
}

// SessionOptions configures session lifetime and time source.
type SessionOptions struct {
	TTL   time.Duration
	Clock Clock
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.TTL <= 0 {
		o.TTL = DefaultSessionTTL
	}
	o.Clock = clockOrDefault(o.Clock)
	return o
}

// newSession stamps a fresh record for userID.
func (o SessionOptions) newSession(userID int64) (Session, error) {
	token, err := newSessionToken()
	if err != nil {
		return Session{}, err
	}
	now := o.Clock()
	return Session{
		ID:        token,
		UserID:    userID,
		ExpiresAt: now.Add(o.TTL),
		CreatedAt: now,
	}, nil
}

// newSessionToken returns 256 bits of randomness, hex encoded.
func newSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	users UserLookup
	opts  SessionOptions

	mu       sync.Mutex
	sessions map[string]Session
}

// NewMemorySessionStore constructs an empty store resolving owners through users.
func NewMemorySessionStore(users UserLookup, opts SessionOptions) *MemorySessionStore {
	return &MemorySessionStore{
		users:    users,
		opts:     opts.withDefaults(),
		sessions: make(map[string]Session),
	}
}

// Create issues a session for userID. The caller guarantees the user exists.
func (s *MemorySessionStore) Create(ctx context.Context, userID int64) (string, error) {
	sess, err := s.opts.newSession(userID)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess.ID, nil
}

// Get resolves id to a valid session and its owner.
func (s *MemorySessionStore) Get(ctx context.Context, id string) (*SessionData, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok && sess.Expired(s.opts.Clock()) {
		delete(s.sessions, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.remove(id)
		return nil, nil
	}
	return &SessionData{User: user, Session: sess}, nil
}

// Delete removes id. Unknown ids are ignored.
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.remove(id)
	return nil
}

// SweepExpired drops every expired session and reports how many went.
func (s *MemorySessionStore) SweepExpired(ctx context.Context) (int, error) {
	now := s.opts.Clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored sessions, expired ones included.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemorySessionStore) remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

var _ SessionStore = (*MemorySessionStore)(nil)
