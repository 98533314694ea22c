package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/gmail-finance-sync/internal/jobs"
	"github.com/dvloznov/gmail-finance-sync/internal/logger"
	"github.com/google/uuid"
)

// Runner executes sync runs one at a time on a single goroutine. At most one
// run is pending or running; further requests get jobs.ErrRunInProgress.
type Runner struct {
	runChan   chan *jobs.SyncRun
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	store     jobs.RunStore
	active    *jobs.SyncRun
	closed    bool
}

// NewRunner creates a Runner that records runs in store.
func NewRunner(store jobs.RunStore) *Runner {
	return &Runner{
		runChan:   make(chan *jobs.SyncRun, 1),
		closeChan: make(chan struct{}),
		store:     store,
	}
}

// Trigger implements jobs.Trigger. When a run is already active it returns a
// copy of that run together with jobs.ErrRunInProgress.
func (r *Runner) Trigger(ctx context.Context, source string) (*jobs.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("runner is closed")
	}
	if r.active != nil {
		runCopy := *r.active
		return &runCopy, jobs.ErrRunInProgress
	}

	run := &jobs.SyncRun{
		RunID:     uuid.NewString(),
		Trigger:   source,
		Status:    jobs.RunStatusPending,
		CreatedAt: time.Now(),
	}
	if err := r.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	r.active = run
	r.runChan <- run

	runCopy := *run
	return &runCopy, nil
}

// Start begins executing triggered runs with handler until ctx is cancelled or Stop is called.
func (r *Runner) Start(ctx context.Context, handler jobs.RunHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("runner is closed")
	}

	r.wg.Add(1)
	go r.loop(ctx, handler)
	return nil
}

func (r *Runner) loop(ctx context.Context, handler jobs.RunHandler) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.closeChan:
			return
		case run := <-r.runChan:
			r.process(ctx, run, handler)
		}
	}
}

func (r *Runner) process(ctx context.Context, run *jobs.SyncRun, handler jobs.RunHandler) {
	log := logger.FromContext(ctx)

	r.mu.Lock()
	now := time.Now()
	run.Status = jobs.RunStatusRunning
	run.StartedAt = &now
	if err := r.store.SaveRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to save run")
	}
	r.mu.Unlock()

	log.Info().Str("run_id", run.RunID).Str("trigger", run.Trigger).Msg("Sync run started")
	report, err := handler(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	completedAt := time.Now()
	run.CompletedAt = &completedAt
	run.Report = report
	if err != nil {
		run.Status = jobs.RunStatusFailed
		run.Error = err.Error()
		log.Error().Err(err).Str("run_id", run.RunID).Msg("Sync run failed")
	} else {
		run.Status = jobs.RunStatusCompleted
		log.Info().Str("run_id", run.RunID).Msg("Sync run completed")
	}
	if err := r.store.SaveRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to save run")
	}
	r.active = nil
}

// Stop stops the runner and waits for an in-flight run to complete.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.closeChan)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure Runner implements the Trigger interface.
var _ jobs.Trigger = (*Runner)(nil)
