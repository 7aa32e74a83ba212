package revocation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingPurger struct {
	calls   atomic.Int32
	deleted int64
	err     error
}

func (p *countingPurger) Purge(context.Context) (int64, error) {
	p.calls.Add(1)
	return p.deleted, p.err
}

func TestDefaultPurgeJobConfig(t *testing.T) {
	config := DefaultPurgeJobConfig()

	if config.Interval != time.Hour {
		t.Errorf("expected interval to be 1 hour, got %v", config.Interval)
	}
	if config.Timeout != time.Minute {
		t.Errorf("expected timeout to be 1 minute, got %v", config.Timeout)
	}
	if !config.Enabled {
		t.Error("expected enabled to be true")
	}
}

func TestPurgeJob_RunNow(t *testing.T) {
	purger := &countingPurger{deleted: 4}
	job := NewPurgeJob(purger, DefaultPurgeJobConfig(), nil)

	result := job.RunNow(context.Background())
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Deleted != 4 {
		t.Errorf("expected 4 deleted, got %d", result.Deleted)
	}
	if job.LastResult() != result {
		t.Error("expected last result to be recorded")
	}
}

func TestPurgeJob_RunNowError(t *testing.T) {
	purger := &countingPurger{err: errors.New("db down")}
	job := NewPurgeJob(purger, DefaultPurgeJobConfig(), nil)

	result := job.RunNow(context.Background())
	if result.Err == nil {
		t.Fatal("expected error")
	}
}

func TestPurgeJob_StartStop(t *testing.T) {
	purger := &countingPurger{}
	job := NewPurgeJob(purger, PurgeJobConfig{Interval: 10 * time.Millisecond, Enabled: true}, nil)

	if err := job.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := job.Start(); err == nil {
		t.Error("expected error starting twice")
	}
	if !job.IsRunning() {
		t.Error("expected job to be running")
	}

	deadline := time.Now().Add(time.Second)
	for purger.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	job.Stop()
	job.Stop()

	if purger.calls.Load() < 2 {
		t.Errorf("expected at least 2 runs, got %d", purger.calls.Load())
	}
	if job.IsRunning() {
		t.Error("expected job to be stopped")
	}
}

func TestPurgeJob_Disabled(t *testing.T) {
	purger := &countingPurger{}
	job := NewPurgeJob(purger, PurgeJobConfig{Enabled: false}, nil)

	if err := job.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if job.IsRunning() {
		t.Error("disabled job should not run")
	}
	job.Stop()
	if purger.calls.Load() != 0 {
		t.Error("disabled job should not purge")
	}
}
