// Package registry holds the current values of the exporter's gauges.
//
// The collector is the only writer and the HTTP exposition layer the only
// reader. Every gauge exists from construction and is never removed.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"flux-exporter/internal/model"
)

var ErrUnknownBucket = errors.New("unknown job state bucket")

// Snapshot is a point-in-time copy of every gauge.
type Snapshot struct {
	Jobs    model.JobCounts
	NodesUp int64
}

type Registry struct {
	mu      sync.RWMutex
	jobs    model.JobCounts
	nodesUp int64
}

// New returns a registry with all job buckets and nodes_up at zero.
func New() *Registry {
	return &Registry{}
}

func (r *Registry) SetJobCount(bucket model.JobStateBucket, value int64) error {
	if !bucket.Valid() {
		return fmt.Errorf("set job count: %w: %d", ErrUnknownBucket, int(bucket))
	}
	r.mu.Lock()
	r.jobs[bucket] = value
	r.mu.Unlock()
	return nil
}

// SetJobCounts replaces all three job buckets in a single critical section so
// readers see either the previous tally or the new one, never a mix.
func (r *Registry) SetJobCounts(counts model.JobCounts) {
	r.mu.Lock()
	r.jobs = counts
	r.mu.Unlock()
}

func (r *Registry) SetNodesUp(value int64) {
	r.mu.Lock()
	r.nodesUp = value
	r.mu.Unlock()
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{Jobs: r.jobs, NodesUp: r.nodesUp}
}
