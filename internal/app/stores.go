package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/inkwell-app/inkwell/internal/auth"
	"github.com/inkwell-app/inkwell/internal/platform/cache"
	"github.com/inkwell-app/inkwell/internal/platform/db"
)

// Stores bundles the credential and session backends selected by configuration.
type Stores struct {
	Credentials auth.CredentialStore
	Sessions    auth.SessionStore

	closers []func()
}

// OpenStores dials the configured backends, applies migrations when Postgres
// is in use and wires the auth stores on top.
func OpenStores(ctx context.Context, cfg *Config, logger *slog.Logger) (*Stores, error) {
	var (
		pg      auth.DBTX
		rdb     redis.UniversalClient
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.UsesPostgres() {
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		closers = append(closers, pool.Close)
		if err := db.Migrate(ctx, pool); err != nil {
			closeAll()
			return nil, err
		}
		logger.Info("postgres ready", slog.String("users", cfg.UserStore), slog.String("sessions", cfg.SessionStore))
		pg = pool
	}
	if cfg.SessionStore == StoreRedis {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		logger.Info("redis ready", slog.String("addr", cfg.RedisAddr))
		rdb = client
	}

	stores, err := buildStores(cfg, pg, rdb)
	if err != nil {
		closeAll()
		return nil, err
	}
	stores.closers = closers
	return stores, nil
}

func buildStores(cfg *Config, pg auth.DBTX, rdb redis.UniversalClient) (*Stores, error) {
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	opts := auth.SessionOptions{TTL: cfg.SessionTTL}

	var credentials auth.CredentialStore
	switch cfg.UserStore {
	case StoreMemory:
		credentials = auth.NewMemoryCredentialStore(hasher, nil)
	case StorePostgres:
		if pg == nil {
			return nil, errors.New("app: postgres user store without connection")
		}
		credentials = auth.NewPGCredentialStore(pg, hasher, nil)
	default:
		return nil, fmt.Errorf("app: unsupported user store %q", cfg.UserStore)
	}

	var sessions auth.SessionStore
	switch cfg.SessionStore {
	case StoreMemory:
		sessions = auth.NewMemorySessionStore(credentials, opts)
	case StorePostgres:
		if pg == nil {
			return nil, errors.New("app: postgres session store without connection")
		}
		sessions = auth.NewPGSessionStore(pg, credentials, opts)
	case StoreRedis:
		if rdb == nil {
			return nil, errors.New("app: redis session store without connection")
		}
		sessions = auth.NewRedisSessionStore(rdb, credentials, opts)
	default:
		return nil, fmt.Errorf("app: unsupported session store %q", cfg.SessionStore)
	}

	return &Stores{Credentials: credentials, Sessions: sessions}, nil
}

// Close releases backend connections in reverse order of opening.
func (s *Stores) Close() {
	if s == nil {
		return
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
