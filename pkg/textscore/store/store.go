// Package store persists pipeline runs and their per-row results.
package store

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/textscore/pkg/textscore/result"
)

// Store is the persistence interface for runs and results.
type Store interface {
	Close() error

	// Runs
	CreateRun(ctx context.Context, r Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Results
	AppendResults(ctx context.Context, runID string, results []result.Result) error
	Results(ctx context.Context, runID string) ([]result.Result, error)
}

// Run describes one pipeline execution over one input file.
type Run struct {
	ID        string
	Input     string
	Mapping   string
	Plugins   []string
	CreatedAt time.Time
	Rows      int // number of stored results, filled on read
}

// IDs issues monotonically increasing ULIDs for runs.
type IDs struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewIDs creates a run ID generator.
func NewIDs() *IDs {
	return &IDs{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns a new ID for a run started at t.
func (g *IDs) Next(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}
