package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// SessionSweeper performs a single expired-session purge.
type SessionSweeper interface {
	SweepOnce(ctx context.Context) (int, error)
}

// SessionSweepJob runs the session sweep inside the Asynq worker.
type SessionSweepJob struct {
	Sweeper SessionSweeper
	Logger  *slog.Logger
}

// NewSessionSweepJob initialises the sweep handler.
func NewSessionSweepJob(sweeper SessionSweeper, logger *slog.Logger) *SessionSweepJob {
	return &SessionSweepJob{Sweeper: sweeper, Logger: logger}
}

// Handle executes one sweep. Store failures are returned so Asynq retries.
func (j *SessionSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("session sweep: handler not configured")
	}
	var payload SessionSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	removed, err := j.Sweeper.SweepOnce(ctx)
	if err != nil {
		return err
	}
	j.logger().Debug("session sweep task done",
		slog.String("trigger", payload.Trigger),
		slog.Int("removed", removed),
	)
	return nil
}

func (j *SessionSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
