package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionSweep removes expired sessions from the configured store.
	TaskSessionSweep = "auth:sessions:sweep"
)

// SessionSweepPayload identifies what triggered a sweep.
type SessionSweepPayload struct {
	Trigger string `json:"trigger"`
}

// NewSessionSweepTask constructs a sweep task for the given trigger, e.g.
// "cron" or "startup".
func NewSessionSweepTask(trigger string) (*asynq.Task, error) {
	if trigger == "" {
		trigger = "cron"
	}
	data, err := json.Marshal(SessionSweepPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionSweep, data, asynq.Queue(QueueDefault)), nil
}
