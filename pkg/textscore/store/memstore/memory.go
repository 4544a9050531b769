package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/textscore/pkg/textscore/internalerr"
	"github.com/cognicore/textscore/pkg/textscore/result"
	"github.com/cognicore/textscore/pkg/textscore/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu      sync.RWMutex
	runs    map[string]store.Run
	results map[string][]result.Result
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		runs:    make(map[string]store.Run),
		results: make(map[string][]result.Result),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// CreateRun records a run. Creating an existing ID replaces its metadata.
func (s *Store) CreateRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return fmt.Errorf("create run: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r.Plugins = append([]string(nil), r.Plugins...)
	r.Rows = 0
	s.runs[r.ID] = r
	return nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return store.Run{}, false, nil
	}
	return s.withRows(r), true, nil
}

// ListRuns returns runs newest first, at most limit when limit > 0.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, s.withRows(r))
	}
	// ULIDs sort by creation time
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AppendResults adds results to an existing run.
func (s *Store) AppendResults(ctx context.Context, runID string, results []result.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	s.results[runID] = append(s.results[runID], results...)
	return nil
}

// Results returns a run's results in row order.
func (s *Store) Results(ctx context.Context, runID string) ([]result.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	out := append([]result.Result(nil), s.results[runID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RowID() < out[j].RowID() })
	return out, nil
}

func (s *Store) withRows(r store.Run) store.Run {
	r.Plugins = append([]string(nil), r.Plugins...)
	r.Rows = len(s.results[r.ID])
	return r
}

var _ store.Store = (*Store)(nil)
