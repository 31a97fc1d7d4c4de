package worker

import (
	"errors"
	"fmt"
	"time"
)

// Config tunes the outbox worker.
type Config struct {
	// Concurrency is the number of pollers. Default 2.
	Concurrency int

	// PollInterval is how often an idle poller looks for jobs when nothing
	// wakes it. Default 2s.
	PollInterval time.Duration

	// JobTimeout bounds one notification delivery or purge. Default 1m.
	JobTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for running jobs. Default 30s.
	ShutdownTimeout time.Duration

	// StaleJobThreshold is how long a job may stay 'running' before it is
	// assumed abandoned and requeued. It must exceed JobTimeout. Default 10m.
	StaleJobThreshold time.Duration

	// RecoverInterval is how often stale jobs are swept while running.
	// Default 5m.
	RecoverInterval time.Duration
}

// DefaultConfig returns the defaults documented on Config.
func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		PollInterval:      2 * time.Second,
		JobTimeout:        time.Minute,
		ShutdownTimeout:   30 * time.Second,
		StaleJobThreshold: 10 * time.Minute,
		RecoverInterval:   5 * time.Minute,
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Concurrency < 1 || c.Concurrency > 100 {
		errs = append(errs, fmt.Errorf("concurrency must be between 1 and 100, got %d", c.Concurrency))
	}
	if c.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("poll interval must be at least 1s, got %v", c.PollInterval))
	}
	if c.JobTimeout < time.Second {
		errs = append(errs, fmt.Errorf("job timeout must be at least 1s, got %v", c.JobTimeout))
	}
	if c.ShutdownTimeout < time.Second {
		errs = append(errs, fmt.Errorf("shutdown timeout must be at least 1s, got %v", c.ShutdownTimeout))
	}
	if c.StaleJobThreshold <= c.JobTimeout {
		errs = append(errs, fmt.Errorf("stale job threshold (%v) must exceed job timeout (%v)", c.StaleJobThreshold, c.JobTimeout))
	}
	if c.RecoverInterval < time.Minute {
		errs = append(errs, fmt.Errorf("recover interval must be at least 1m, got %v", c.RecoverInterval))
	}
	return errors.Join(errs...)
}
