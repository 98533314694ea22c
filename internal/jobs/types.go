package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/gmail-finance-sync/internal/pipeline"
)

// ErrRunInProgress is returned when a sync run is requested while another is
// pending or running. Cycles against one mailbox never overlap.
var ErrRunInProgress = errors.New("a sync run is already pending or running")

// ErrRunNotFound is returned by RunStore lookups for unknown ids.
var ErrRunNotFound = errors.New("sync run not found")

// RunStatus represents the current status of a sync run.
type RunStatus string

const (
	// RunStatusPending indicates the run is waiting to start.
	RunStatusPending RunStatus = "pending"
	// RunStatusRunning indicates the cycle is in progress.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted indicates the cycle finished; individual messages may still have failed.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed indicates the cycle was aborted.
	RunStatusFailed RunStatus = "failed"
)

// SyncRun is one requested discovery cycle.
type SyncRun struct {
	// RunID is the unique identifier for this run.
	RunID string `json:"run_id"`

	// Trigger names what requested the run: api, interval.
	Trigger string `json:"trigger"`

	Status RunStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains the reason the cycle was aborted.
	Error string `json:"error,omitempty"`

	// Report holds per-message outcomes once the cycle has run.
	Report *pipeline.RunReport `json:"report,omitempty"`
}

// RunHandler executes one discovery cycle.
type RunHandler func(ctx context.Context) (*pipeline.RunReport, error)

// Trigger requests sync runs.
type Trigger interface {
	Trigger(ctx context.Context, source string) (*SyncRun, error)
}

// RunStore defines the interface for storing and retrieving sync runs.
type RunStore interface {
	// SaveRun saves or updates a run's state.
	SaveRun(ctx context.Context, run *SyncRun) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, runID string) (*SyncRun, error)

	// ListRuns retrieves runs, newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]*SyncRun, error)
}

// RunFilter defines filtering criteria for listing runs.
type RunFilter struct {
	// Status filters runs by status.
	Status RunStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
