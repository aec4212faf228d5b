package store

import (
	"context"
	"sync"

	"github.com/bluzky/pocsync/pipeline"
)

// StaticDirectory is an in-memory Directory backed by a caller-supplied
// pipeline list. It is the default directory implementation: no external
// dependency is required to run the gateway, matching spec.md's open
// question decision to make the pluggable directory default to an
// in-process list rather than require Postgres or a config file.
type StaticDirectory struct {
	mu        sync.RWMutex
	pipelines []pipeline.Pipeline
}

// NewStaticDirectory constructs a StaticDirectory seeded with pipelines.
func NewStaticDirectory(pipelines []pipeline.Pipeline) *StaticDirectory {
	return &StaticDirectory{pipelines: pipelines}
}

// ListPipelines returns a snapshot of the configured pipelines.
func (d *StaticDirectory) ListPipelines(ctx context.Context) ([]pipeline.Pipeline, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]pipeline.Pipeline, len(d.pipelines))
	copy(out, d.pipelines)
	return out, nil
}

// Replace atomically swaps the directory's pipeline list, letting callers
// reload pipeline definitions (e.g. from a YAMLDirectory's backing file)
// without constructing a new StaticDirectory.
func (d *StaticDirectory) Replace(pipelines []pipeline.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pipelines = pipelines
}

// Add appends a single pipeline definition to the directory.
func (d *StaticDirectory) Add(p pipeline.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pipelines = append(d.pipelines, p)
}
