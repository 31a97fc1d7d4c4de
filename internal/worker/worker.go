package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/DukeRupert/rentcheck/internal/metrics"
	"github.com/DukeRupert/rentcheck/internal/repository"
	"golang.org/x/sync/errgroup"
)

// Worker delivers the workflow's outbox: notification emails and purges of
// orphaned photos. Jobs live in Postgres so an event raised by a committed
// transition survives a restart.
type Worker struct {
	db       *sql.DB
	queries  *repository.Queries
	handlers map[string]JobHandler
	config   Config
	logger   *slog.Logger

	// wake lets an enqueue skip the rest of the poll interval.
	wake chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates a Worker. Register handlers, then call Start.
func New(db *sql.DB, queries *repository.Queries, config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Worker{
		db:       db,
		queries:  queries,
		handlers: make(map[string]JobHandler),
		config:   config,
		logger:   logger.With("component", "worker"),
		wake:     make(chan struct{}, 1),
	}, nil
}

// Register adds a handler for its job type. Call it before Start.
func (w *Worker) Register(handler JobHandler) {
	jobType := handler.Type()
	if _, exists := w.handlers[jobType]; exists {
		w.logger.Warn("Overwriting existing handler", "job_type", jobType)
	}
	w.handlers[jobType] = handler
}

// Wake nudges one idle poller. It never blocks.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start recovers jobs abandoned by a crashed process and launches the
// pollers. It returns immediately.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.group != nil {
		return
	}

	if err := w.recoverStaleJobs(ctx); err != nil {
		w.logger.Error("Failed to recover stale jobs", "error", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	for i := 1; i <= w.config.Concurrency; i++ {
		logger := w.logger.With("worker_id", i)
		g.Go(func() error {
			w.poll(gctx, logger)
			return nil
		})
	}
	g.Go(func() error {
		w.recoverPeriodically(gctx)
		return nil
	})

	w.cancel = cancel
	w.group = g
	w.logger.Info("Worker started", "concurrency", w.config.Concurrency, "handlers", len(w.handlers))
}

// Stop stops polling and waits up to ShutdownTimeout for running jobs.
// A job still running after that is recovered on the next start.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, g := w.cancel, w.group
	w.cancel, w.group = nil, nil
	w.mu.Unlock()
	if g == nil {
		return
	}

	w.logger.Info("Stopping worker")
	cancel()

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timeout exceeded, running jobs will be recovered on restart")
	}
}

func (w *Worker) poll(ctx context.Context, logger *slog.Logger) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		w.drain(ctx, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

// drain runs jobs back to back until the queue is empty, so a burst of
// notifications from one transition goes out without waiting between each.
func (w *Worker) drain(ctx context.Context, logger *slog.Logger) {
	for ctx.Err() == nil {
		err := w.processNextJob(ctx, logger)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) && ctx.Err() == nil {
			logger.Error("Failed to process job", "error", err)
		}
		return
	}
}

func (w *Worker) recoverPeriodically(ctx context.Context) {
	ticker := time.NewTicker(w.config.RecoverInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.recoverStaleJobs(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("Failed to recover stale jobs", "error", err)
			}
		}
	}
}

// recoverStaleJobs returns jobs stuck in 'running' past StaleJobThreshold to
// the queue. Handlers are idempotent, so a job that did finish is merely
// delivered twice.
func (w *Worker) recoverStaleJobs(ctx context.Context) error {
	count, err := w.queries.RecoverStaleJobs(ctx, w.config.StaleJobThreshold.Seconds())
	if err != nil {
		return fmt.Errorf("recover stale jobs: %w", err)
	}
	if count > 0 {
		w.logger.Warn("Recovered stale jobs", "count", count, "threshold", w.config.StaleJobThreshold)
	}
	return nil
}

// processNextJob claims and runs one job. It returns sql.ErrNoRows when the
// queue is empty. A failing handler is not an error here: the failure is
// recorded on the job.
func (w *Worker) processNextJob(ctx context.Context, logger *slog.Logger) error {
	job, err := w.claim(ctx)
	if err != nil {
		return err
	}

	logger = logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts+1)
	logger.Debug("Processing job")

	// A claimed job runs to completion or timeout even while stopping.
	runCtx := context.WithoutCancel(ctx)

	done := metrics.TrackJob(job.JobType)
	start := time.Now()
	if err := w.executeJob(runCtx, job); err != nil {
		logger.Error("Job failed", "error", err)
		done(err, w.markJobFailed(runCtx, job, err))
		return nil
	}
	done(nil, false)

	if err := w.queries.UpdateJobCompleted(runCtx, job.ID); err != nil {
		return fmt.Errorf("mark job %s completed: %w", job.ID, err)
	}
	logger.Info("Job completed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// claim locks the next runnable job and marks it running in one transaction.
func (w *Worker) claim(ctx context.Context) (repository.Job, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return repository.Job{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := w.queries.WithTx(tx)
	job, err := qtx.DequeueJob(ctx)
	if err != nil {
		return repository.Job{}, err
	}
	if err := qtx.UpdateJobStarted(ctx, job.ID); err != nil {
		return repository.Job{}, fmt.Errorf("mark job started: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return repository.Job{}, fmt.Errorf("commit claim: %w", err)
	}
	return job, nil
}

// executeJob runs the job's handler under JobTimeout. A panicking handler
// fails the job permanently instead of taking the poller down with it.
func (w *Worker) executeJob(ctx context.Context, job repository.Job) (err error) {
	handler, ok := w.handlers[job.JobType]
	if !ok {
		return NewPermanentError(fmt.Errorf("no handler registered for job type %q", job.JobType))
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Job handler panicked", "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
			err = NewPermanentError(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return handler.Handle(jobCtx, job.Payload)
}

// markJobFailed records the failure and reports whether the job will run
// again. The query reschedules it with exponential backoff unless the error
// is permanent or attempts ran out.
func (w *Worker) markJobFailed(ctx context.Context, job repository.Job, jobErr error) bool {
	permanent := IsPermanent(jobErr)
	retry := !permanent && job.Attempts+1 < job.MaxAttempts

	switch {
	case permanent:
		w.logger.Warn("Job failed permanently", "job_id", job.ID, "error", jobErr)
	case !retry:
		w.logger.Warn("Job exhausted its attempts", "job_id", job.ID, "attempts", job.Attempts+1)
	}

	err := w.queries.UpdateJobFailed(ctx, repository.UpdateJobFailedParams{
		ID:           job.ID,
		ErrorMessage: sql.NullString{String: jobErr.Error(), Valid: true},
		Permanent:    permanent,
	})
	if err != nil {
		w.logger.Error("Failed to mark job as failed", "job_id", job.ID, "error", err)
	}
	return retry
}
