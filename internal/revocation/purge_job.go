package revocation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/welldanyogia/recetas/backend/internal/metrics"
)

// Purger removes expired revocation entries.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// PurgeJobConfig holds configuration for the purge job
type PurgeJobConfig struct {
	Interval time.Duration // default: 1 hour
	Timeout  time.Duration // per run, default: 1 minute
	Enabled  bool
}

// DefaultPurgeJobConfig returns default configuration
func DefaultPurgeJobConfig() PurgeJobConfig {
	return PurgeJobConfig{
		Interval: time.Hour,
		Timeout:  time.Minute,
		Enabled:  true,
	}
}

// PurgeResult holds the result of a purge run
type PurgeResult struct {
	StartTime time.Time
	EndTime   time.Time
	Deleted   int64
	Err       error
}

// PurgeJob periodically deletes revocation entries whose tokens have expired.
type PurgeJob struct {
	purger     Purger
	config     PurgeJobConfig
	logger     *slog.Logger
	stopChan   chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	lastResult *PurgeResult
}

// NewPurgeJob creates a new purge job
func NewPurgeJob(purger Purger, config PurgeJobConfig, logger *slog.Logger) *PurgeJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	return &PurgeJob{
		purger:   purger,
		config:   config,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic purge. The first run happens immediately.
func (j *PurgeJob) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return fmt.Errorf("purge job is already running")
	}
	if !j.config.Enabled {
		j.logger.Info("revocation purge job is disabled")
		return nil
	}

	j.running = true
	j.stopChan = make(chan struct{})
	j.wg.Add(1)
	go j.run()

	j.logger.Info("revocation purge job started", "interval", j.config.Interval)
	return nil
}

// Stop stops the job and waits for an in-flight run to finish.
func (j *PurgeJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	close(j.stopChan)
	j.mu.Unlock()

	j.wg.Wait()
	j.logger.Info("revocation purge job stopped")
}

// IsRunning returns whether the job is running
func (j *PurgeJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// LastResult returns the result of the last run, or nil.
func (j *PurgeJob) LastResult() *PurgeResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastResult
}

func (j *PurgeJob) run() {
	defer j.wg.Done()

	j.runOnce()

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.runOnce()
		case <-j.stopChan:
			return
		}
	}
}

func (j *PurgeJob) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), j.config.Timeout)
	defer cancel()

	result := j.RunNow(ctx)
	if result.Err != nil {
		j.logger.Error("revocation purge failed", "error", result.Err)
		return
	}
	j.logger.Info("revocation purge completed",
		"deleted", result.Deleted,
		"duration", result.EndTime.Sub(result.StartTime),
	)
}

// RunNow performs one purge synchronously.
func (j *PurgeJob) RunNow(ctx context.Context) *PurgeResult {
	result := &PurgeResult{StartTime: time.Now()}

	deleted, err := j.purger.Purge(ctx)
	result.Deleted = deleted
	result.Err = err
	result.EndTime = time.Now()

	if err == nil && deleted > 0 {
		metrics.RevokedTokensPurged.Add(float64(deleted))
	}

	j.mu.Lock()
	j.lastResult = result
	j.mu.Unlock()

	return result
}
