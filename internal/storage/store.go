package storage

import (
	"context"
	"errors"
	"time"

	"influencemap/internal/graph"
)

// ErrRunNotFound is returned by LoadRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Run is a finished influence map as stored.
type Run struct {
	ID          string
	CreatedAt   time.Time
	Seeds       []string
	Missing     []string
	Interrupted bool
	Duration    time.Duration
	Edges       []graph.Edge
}

// RunSummary is one row of ListRuns.
type RunSummary struct {
	ID          string
	CreatedAt   time.Time
	Seeds       []string
	Nodes       int
	Edges       int
	Interrupted bool
}

// RunStore persists finished runs.
type RunStore interface {
	// SaveRun stores run and returns its id, generating one when run.ID is empty.
	SaveRun(ctx context.Context, run *Run) (string, error)

	// LoadRun returns the run with the given id, edges in stored order.
	LoadRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns every stored run, newest first.
	ListRuns(ctx context.Context) ([]RunSummary, error)

	Close() error
}
