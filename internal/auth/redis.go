package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisSessionPrefix = "session:"
	redisScanCount     = 100
)

// errCorruptSession marks values that no longer decode. The sweep removes them.
var errCorruptSession = errors.New("auth: corrupt session payload")

// RedisSessionStore keeps sessions as JSON values with a key TTL equal to the
// session lifetime, so Redis expires them even when no sweep runs.
type RedisSessionStore struct {
	client redis.UniversalClient
	users  UserLookup
	opts   SessionOptions
}

type redisSessionPayload struct {
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRedisSessionStore constructs a Redis-backed session store.
func NewRedisSessionStore(client redis.UniversalClient, users UserLookup, opts SessionOptions) *RedisSessionStore {
	return &RedisSessionStore{client: client, users: users, opts: opts.withDefaults()}
}

// Create stores a new session for userID.
func (s *RedisSessionStore) Create(ctx context.Context, userID int64) (string, error) {
	sess, err := s.opts.newSession(userID)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(redisSessionPayload{UserID: sess.UserID, ExpiresAt: sess.ExpiresAt, CreatedAt: sess.CreatedAt})
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, redisKey(sess.ID), data, s.opts.TTL).Err(); err != nil {
		return "", fmt.Errorf("auth: store session: %w", err)
	}
	return sess.ID, nil
}

// Get resolves id, purging expired and orphaned entries.
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*SessionData, error) {
	sess, err := s.load(ctx, redisKey(id))
	if err != nil || sess == nil {
		return nil, err
	}
	if sess.Expired(s.opts.Clock()) {
		return nil, s.Delete(ctx, id)
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, s.Delete(ctx, id)
	}
	return &SessionData{User: user, Session: *sess}, nil
}

// Delete removes id. Missing keys are not an error.
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("auth: delete session: %w", err)
	}
	return nil
}

// SweepExpired scans all session keys and removes the expired ones. Entries
// Redis already evicted are skipped.
func (s *RedisSessionStore) SweepExpired(ctx context.Context) (int, error) {
	now := s.opts.Clock()
	removed := 0
	iter := s.client.Scan(ctx, 0, redisSessionPrefix+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		sess, err := s.load(ctx, key)
		if err != nil && !errors.Is(err, errCorruptSession) {
			return removed, err
		}
		if err == nil && (sess == nil || !sess.Expired(now)) {
			continue
		}
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return removed, fmt.Errorf("auth: sweep session: %w", err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("auth: scan sessions: %w", err)
	}
	return removed, nil
}

func (s *RedisSessionStore) load(ctx context.Context, key string) (*Session, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth: load session: %w", err)
	}
	var payload redisSessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptSession, err)
	}
	return &Session{
		ID:        key[len(redisSessionPrefix):],
		UserID:    payload.UserID,
		ExpiresAt: payload.ExpiresAt,
		CreatedAt: payload.CreatedAt,
	}, nil
}

func redisKey(id string) string {
	return redisSessionPrefix + id
}

var _ SessionStore = (*RedisSessionStore)(nil)
