package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-app/inkwell/internal/auth"
)

type redisFixture struct {
	mr       *miniredis.Miniredis
	clock    *fakeClock
	users    *auth.MemoryCredentialStore
	sessions *auth.RedisSessionStore
}

func newRedisFixture(t *testing.T) redisFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	clock := newFakeClock()
	users := auth.NewMemoryCredentialStore(testHasher(), clock.Now)
	return redisFixture{
		mr:       mr,
		clock:    clock,
		users:    users,
		sessions: auth.NewRedisSessionStore(client, users, auth.SessionOptions{Clock: clock.Now}),
	}
}

func (f redisFixture) mustCreateUser(t *testing.T, username string) *auth.User {
	t.Helper()
	user, err := f.users.Create(context.Background(), username, "secret1")
	require.NoError(t, err)
	return user
}

func TestRedisSessionStoreCreateAndGet(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	user := f.mustCreateUser(t, "alice")

	token, err := f.sessions.Create(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.True(t, f.mr.Exists("session:"+token))
	assert.Equal(t, auth.DefaultSessionTTL, f.mr.TTL("session:"+token))

	data, err := f.sessions.Get(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, user.ID, data.User.ID)
	assert.Equal(t, token, data.Session.ID)
	assert.True(t, f.clock.Now().Add(auth.DefaultSessionTTL).Equal(data.Session.ExpiresAt))
}

func TestRedisSessionStoreExpiredReadPurges(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	user := f.mustCreateUser(t, "alice")
	token, err := f.sessions.Create(ctx, user.ID)
	require.NoError(t, err)

	f.clock.Advance(auth.DefaultSessionTTL)

	data, err := f.sessions.Get(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.False(t, f.mr.Exists("session:"+token))
}

func TestRedisSessionStoreKeyTTLEviction(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	user := f.mustCreateUser(t, "alice")
	token, err := f.sessions.Create(ctx, user.ID)
	require.NoError(t, err)

	f.mr.FastForward(auth.DefaultSessionTTL + time.Second)

	data, err := f.sessions.Get(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestRedisSessionStoreOrphanReadPurges(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	token, err := f.sessions.Create(ctx, 404)
	require.NoError(t, err)

	data, err := f.sessions.Get(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.False(t, f.mr.Exists("session:"+token))
}

func TestRedisSessionStoreDeleteIsIdempotent(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	user := f.mustCreateUser(t, "alice")
	token, err := f.sessions.Create(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, f.sessions.Delete(ctx, token))
	require.NoError(t, f.sessions.Delete(ctx, token))
	data, err := f.sessions.Get(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestRedisSessionStoreSweepRemovesOnlyExpired(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	user := f.mustCreateUser(t, "alice")

	for i := 0; i < 4; i++ {
		_, err := f.sessions.Create(ctx, user.ID)
		require.NoError(t, err)
	}
	f.clock.Advance(8 * 24 * time.Hour)
	fresh, err := f.sessions.Create(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, f.mr.Set("unrelated", "keep"))

	removed, err := f.sessions.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, removed)
	assert.True(t, f.mr.Exists("session:"+fresh))
	assert.True(t, f.mr.Exists("unrelated"))

	sessionKeys := 0
	for _, key := range f.mr.Keys() {
		if len(key) > len("session:") && key[:len("session:")] == "session:" {
			sessionKeys++
		}
	}
	assert.Equal(t, 1, sessionKeys)
}

func TestRedisSessionStoreSweepDropsCorruptEntries(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mr.Set("session:garbage", "{not json"))

	_, err := f.sessions.Get(ctx, "garbage")
	require.Error(t, err)

	removed, err := f.sessions.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, f.mr.Exists("session:garbage"))
}
