package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"flux-exporter/internal/flux"
	"flux-exporter/internal/model"
	"flux-exporter/internal/registry"
)

type JobsResult struct {
	Counts   model.JobCounts
	Listed   int
	Duration time.Duration
	Err      error
}

type NodesResult struct {
	Rank     int
	NodesUp  int64
	Duration time.Duration
	Err      error
}

// CycleResult reports both sub-collections of one cycle. A non-nil Err on a
// family means its gauges were left at their previous values.
type CycleResult struct {
	ID        string
	StartedAt time.Time
	Jobs      JobsResult
	Nodes     NodesResult
}

func (r CycleResult) Err() error {
	return errors.Join(r.Jobs.Err, r.Nodes.Err)
}

// Collector polls the scheduler and writes the results into a Registry. It
// is the registry's only writer.
type Collector struct {
	logger       *slog.Logger
	jobs         *JobCollector
	nodes        *NodeCollector
	registry     *registry.Registry
	queryTimeout time.Duration
}

// NewCollector builds a collector. A positive queryTimeout bounds each
// scheduler query; zero leaves queries unbounded.
func NewCollector(logger *slog.Logger, client flux.Client, reg *registry.Registry, queryTimeout time.Duration) *Collector {
	if queryTimeout < 0 {
		queryTimeout = 0
	}
	return &Collector{
		logger:       logger,
		jobs:         NewJobCollector(client),
		nodes:        NewNodeCollector(client),
		registry:     reg,
		queryTimeout: queryTimeout,
	}
}

// RunForever runs one cycle immediately and then one per interval until ctx
// is cancelled. Ticks are fixed-rate from each cycle's start; a cycle that
// overruns the interval is followed immediately by the next one, without a
// catch-up burst. Cycle failures never stop the loop.
func (c *Collector) RunForever(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("collector interval must be > 0, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("collector started", "interval", interval, "query_timeout", c.queryTimeout)
	c.CollectOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("collector stopped")
			return nil
		case <-ticker.C:
			c.CollectOnce(ctx)
		}
	}
}

// CollectOnce runs the job and node sub-collections concurrently. Each one
// updates its own gauge family only on success.
func (c *Collector) CollectOnce(ctx context.Context) CycleResult {
	res := CycleResult{ID: uuid.NewString(), StartedAt: time.Now().UTC()}

	var g errgroup.Group
	g.Go(func() error {
		res.Jobs = c.collectJobs(ctx, res.ID)
		return nil
	})
	g.Go(func() error {
		res.Nodes = c.collectNodes(ctx, res.ID)
		return nil
	})
	_ = g.Wait()

	return res
}

func (c *Collector) collectJobs(ctx context.Context, cycleID string) (out JobsResult) {
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
	}()

	err := guard(func() error {
		qctx, cancel := c.queryContext(ctx)
		defer cancel()
		counts, listed, err := c.jobs.Collect(qctx)
		if err != nil {
			return err
		}
		out.Counts, out.Listed = counts, listed
		return nil
	})
	if err != nil {
		c.logFailure(ctx, "job collection failed", cycleID, model.FamilyJobs, err)
		return JobsResult{Err: err}
	}

	c.registry.SetJobCounts(out.Counts)
	if uncounted := int64(out.Listed) - out.Counts.Total(); uncounted > 0 {
		c.logger.Debug("jobs in unexported states", "cycle_id", cycleID, "uncounted", uncounted)
	}
	c.logger.Debug("job collection done", "cycle_id", cycleID, "counts", out.Counts.Map(), "listed", out.Listed)
	return out
}

func (c *Collector) collectNodes(ctx context.Context, cycleID string) (out NodesResult) {
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
	}()

	err := guard(func() error {
		qctx, cancel := c.queryContext(ctx)
		defer cancel()
		rank, nodesUp, err := c.nodes.Collect(qctx)
		if err != nil {
			return err
		}
		out.Rank, out.NodesUp = rank, nodesUp
		return nil
	})
	if err != nil {
		c.logFailure(ctx, "node collection failed", cycleID, model.FamilyNodes, err)
		return NodesResult{Err: err}
	}

	c.registry.SetNodesUp(out.NodesUp)
	c.logger.Debug("node collection done", "cycle_id", cycleID, "rank", out.Rank, "nodes_up", out.NodesUp)
	return out
}

// logFailure reports a failed sub-collection. Failures caused by shutdown
// cancelling ctx are logged at debug level.
func (c *Collector) logFailure(ctx context.Context, msg, cycleID string, family model.Family, err error) {
	level := slog.LevelError
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		level = slog.LevelDebug
	}
	c.logger.Log(ctx, level, msg, "cycle_id", cycleID, "family", family, "error", err)
}

func (c *Collector) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.queryTimeout)
}

// guard runs fn and turns a panic into an error so one sub-collection cannot
// take down the other or the process.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during collection: %v", r)
		}
	}()
	return fn()
}
