package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"flux-exporter/internal/flux"
	"flux-exporter/internal/model"
)

// HealthStatus tracks the freshness of each gauge family and derives
// scheduler reachability from it. Values on /metrics carry no staleness
// marker; this is where it is reported instead.
type HealthStatus struct {
	lastJobsSuccessAt  atomic.Int64
	lastNodesSuccessAt atomic.Int64
	jobsFailures       atomic.Int64
	nodesFailures      atomic.Int64
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{}
}

func (h *HealthStatus) MarkSuccess(f model.Family, ts time.Time) {
	switch f {
	case model.FamilyJobs:
		h.lastJobsSuccessAt.Store(ts.UnixNano())
		h.jobsFailures.Store(0)
	case model.FamilyNodes:
		h.lastNodesSuccessAt.Store(ts.UnixNano())
		h.nodesFailures.Store(0)
	}
}

func (h *HealthStatus) MarkFailure(f model.Family) {
	switch f {
	case model.FamilyJobs:
		h.jobsFailures.Add(1)
	case model.FamilyNodes:
		h.nodesFailures.Add(1)
	}
}

// LastSuccess returns when the family last completed, or the zero time.
func (h *HealthStatus) LastSuccess(f model.Family) time.Time {
	var v int64
	switch f {
	case model.FamilyJobs:
		v = h.lastJobsSuccessAt.Load()
	case model.FamilyNodes:
		v = h.lastNodesSuccessAt.Load()
	}
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}

func (h *HealthStatus) ConsecutiveFailures(f model.Family) int64 {
	switch f {
	case model.FamilyJobs:
		return h.jobsFailures.Load()
	case model.FamilyNodes:
		return h.nodesFailures.Load()
	}
	return 0
}

// SchedulerReachable reports whether at least one family has succeeded and
// has not failed since. It does not depend on the order in which the two
// concurrent sub-collections finish.
func (h *HealthStatus) SchedulerReachable() bool {
	for _, f := range []model.Family{model.FamilyJobs, model.FamilyNodes} {
		if !h.LastSuccess(f).IsZero() && h.ConsecutiveFailures(f) == 0 {
			return true
		}
	}
	return false
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"scheduler_reachable":        h.SchedulerReachable(),
		"jobs_consecutive_failures":  h.jobsFailures.Load(),
		"nodes_consecutive_failures": h.nodesFailures.Load(),
	}
	if ts := h.LastSuccess(model.FamilyJobs); !ts.IsZero() {
		out["last_jobs_success_at"] = ts
	}
	if ts := h.LastSuccess(model.FamilyNodes); !ts.IsZero() {
		out["last_nodes_success_at"] = ts
	}
	return out
}

// healthClient records the outcome of every scheduler query. Queries
// cancelled by shutdown are not counted as failures.
type healthClient struct {
	client flux.Client
	health *HealthStatus
}

func cancelledByCaller(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

func (c *healthClient) ListJobs(ctx context.Context) ([]model.JobSnapshot, error) {
	jobs, err := c.client.ListJobs(ctx)
	if err != nil {
		if !cancelledByCaller(ctx) {
			c.health.MarkFailure(model.FamilyJobs)
		}
		return nil, err
	}
	c.health.MarkSuccess(model.FamilyJobs, time.Now().UTC())
	return jobs, nil
}

func (c *healthClient) HighestRank(ctx context.Context) (int, error) {
	rank, err := c.client.HighestRank(ctx)
	if err != nil {
		if !cancelledByCaller(ctx) {
			c.health.MarkFailure(model.FamilyNodes)
		}
		return 0, err
	}
	c.health.MarkSuccess(model.FamilyNodes, time.Now().UTC())
	return rank, nil
}
