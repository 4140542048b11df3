package auth_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/inkwell-app/inkwell/internal/auth"
	_ "github.com/inkwell-app/inkwell/testing"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testHasher() *auth.BcryptHasher {
	return auth.NewBcryptHasher(bcrypt.MinCost)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memoryFixture struct {
	clock    *fakeClock
	users    *auth.MemoryCredentialStore
	sessions *auth.MemorySessionStore
}

func newMemoryFixture(t *testing.T) memoryFixture {
	t.Helper()
	clock := newFakeClock()
	users := auth.NewMemoryCredentialStore(testHasher(), clock.Now)
	sessions := auth.NewMemorySessionStore(users, auth.SessionOptions{Clock: clock.Now})
	return memoryFixture{clock: clock, users: users, sessions: sessions}
}

func (f memoryFixture) mustCreateUser(t *testing.T, username, password string) *auth.User {
	t.Helper()
	user, err := f.users.Create(context.Background(), username, password)
	if err != nil {
		t.Fatalf("create user %q: %v", username, err)
	}
	return user
}

// lookupFunc adapts a function to auth.UserLookup.
type lookupFunc func(ctx context.Context, id int64) (*auth.User, error)

func (f lookupFunc) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	return f(ctx, id)
}
