package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	jobmetrics "github.com/inkwell-app/inkwell/internal/jobs"
)

const (
	// DefaultSweepInterval is how often expired sessions are purged.
	DefaultSweepInterval = time.Hour

	sweepJobName = "session_sweep"
)

// Sweepable is the part of a SessionStore the sweeper needs.
type Sweepable interface {
	SweepExpired(ctx context.Context) (int, error)
}

// SweeperConfig collects the sweeper dependencies.
type SweeperConfig struct {
	Store    Sweepable
	Interval time.Duration
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// Sweeper periodically purges expired sessions. Reads already ignore expired
// sessions, so the sweep only bounds storage growth.
type Sweeper struct {
	store    Sweepable
	interval time.Duration
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper constructs a Sweeper.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: cfg.Store, interval: interval, logger: logger, metrics: cfg.Metrics}
}

// Run sweeps on every tick until ctx is cancelled. It always returns nil once
// the context ends; sweep failures are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	tracker := s.metrics.Track(sweepJobName)
	removed, err := s.store.SweepExpired(ctx)
	s.metrics.AddPurged(removed)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("sweep expired sessions", slog.Any("error", err), slog.Int("removed", removed))
	} else if removed > 0 {
		s.logger.Info("swept expired sessions", slog.Int("removed", removed))
	}
	return removed, tracker.End(err)
}

// Start launches Run in a goroutine. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
}

// Stop cancels a started sweeper and waits for its goroutine to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
