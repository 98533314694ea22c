package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/gmail-finance-sync/internal/jobs"
)

// Store is an in-memory implementation of RunStore.
// It is safe for concurrent use. Data is lost on restart.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*jobs.SyncRun
}

// NewStore creates a new in-memory run store.
func NewStore() *Store {
	return &Store{
		runs: make(map[string]*jobs.SyncRun),
	}
}

// SaveRun implements the RunStore interface.
func (s *Store) SaveRun(ctx context.Context, run *jobs.SyncRun) error {
	if run.RunID == "" {
		return fmt.Errorf("run ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Create a copy to avoid external modifications
	runCopy := *run
	s.runs[run.RunID] = &runCopy

	return nil
}

// GetRun implements the RunStore interface.
func (s *Store) GetRun(ctx context.Context, runID string) (*jobs.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", jobs.ErrRunNotFound, runID)
	}

	runCopy := *run
	return &runCopy, nil
}

// ListRuns implements the RunStore interface.
func (s *Store) ListRuns(ctx context.Context, filter jobs.RunFilter) ([]*jobs.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*jobs.SyncRun{}
	for _, run := range s.runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		runCopy := *run
		result = append(result, &runCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	// Apply limit and offset
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.SyncRun{}, nil
		}
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Ensure Store implements RunStore interface.
var _ jobs.RunStore = (*Store)(nil)
