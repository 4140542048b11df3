package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/inkwell-app/inkwell/internal/auth"
	jobmetrics "github.com/inkwell-app/inkwell/internal/jobs"
	"github.com/inkwell-app/inkwell/jobs"
	_ "github.com/inkwell-app/inkwell/testing"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestSessionSweepJobPurgesExpiredSessions(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)}
	users := auth.NewMemoryCredentialStore(auth.NewBcryptHasher(4), c.Now)
	sessions := auth.NewMemorySessionStore(users, auth.SessionOptions{TTL: time.Hour, Clock: c.Now})

	user, err := users.Create(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := sessions.Create(ctx, user.ID); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}
	c.now = c.now.Add(2 * time.Hour)
	fresh, err := sessions.Create(ctx, user.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	reg := prometheus.NewRegistry()
	sweeper := auth.NewSweeper(auth.SweeperConfig{Store: sessions, Metrics: jobmetrics.NewMetrics(reg)})
	job := jobs.NewSessionSweepJob(sweeper, nil)
	task, err := jobs.NewSessionSweepTask("cron")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := job.Handle(ctx, task); err != nil {
		t.Fatalf("job handle: %v", err)
	}
	if sessions.Len() != 1 {
		t.Fatalf("expected 1 session to survive, got %d", sessions.Len())
	}
	data, err := sessions.Get(ctx, fresh)
	if err != nil || data == nil {
		t.Fatalf("expected fresh session to remain valid, got %v %v", data, err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if !assertCounter(t, families, "inkwell_jobs_total", map[string]string{"job": "session_sweep", "status": "success"}, 1) {
		t.Fatalf("expected inkwell_jobs_total increment for session sweep")
	}
	if !assertCounter(t, families, "inkwell_sessions_purged_total", map[string]string{"reason": "expired"}, 2) {
		t.Fatalf("expected two purged sessions")
	}
	if !metricExists(families, "inkwell_job_duration_seconds") {
		t.Fatalf("expected inkwell_job_duration_seconds to be recorded")
	}
}

func assertCounter(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string, expected float64) bool {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchLabels(metric.GetLabel(), labels) {
				if metric.GetCounter() == nil {
					return false
				}
				if metric.GetCounter().GetValue() == expected {
					return true
				}
			}
		}
	}
	return false
}

func metricExists(families []*dto.MetricFamily, name string) bool {
	for _, fam := range families {
		if fam.GetName() == name {
			return true
		}
	}
	return false
}

func matchLabels(pairs []*dto.LabelPair, expected map[string]string) bool {
	if len(expected) == 0 {
		return true
	}
	seen := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		seen[pair.GetName()] = pair.GetValue()
	}
	for k, v := range expected {
		if seen[k] != v {
			return false
		}
	}
	return true
}
