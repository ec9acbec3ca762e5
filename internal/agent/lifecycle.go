package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"flux-exporter/internal/model"
)

// staleAfterIntervals is how many poll intervals a family may go without a
// successful collection before the health loop warns about it.
const staleAfterIntervals = 3

func (a *Agent) run(ctx context.Context) error {
	addr := strings.TrimSpace(a.cfg.ListenAddr)
	if addr == "" {
		return fmt.Errorf("empty metrics listen address")
	}
	// Serving metrics is the exporter's only purpose, so a bind failure ends
	// the run before any collection starts.
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics endpoint %s: %w", addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.serveHTTP(gctx, ln)
	})
	g.Go(func() error {
		return a.collector.RunForever(gctx, a.cfg.PollInterval)
	})
	g.Go(func() error {
		return a.runHealthLoop(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *Agent) runHealthLoop(ctx context.Context) error {
	t := time.NewTicker(a.cfg.PollInterval)
	defer t.Stop()
	started := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			a.checkStaleness(now, started)
		}
	}
}

func (a *Agent) checkStaleness(now, started time.Time) {
	limit := time.Duration(staleAfterIntervals) * a.cfg.PollInterval
	for _, f := range []model.Family{model.FamilyJobs, model.FamilyNodes} {
		last := a.health.LastSuccess(f)
		if last.IsZero() {
			last = started
		}
		if age := now.Sub(last); age > limit {
			a.logger.Warn("gauge family is stale",
				"family", f,
				"age", age.Round(time.Millisecond),
				"consecutive_failures", a.health.ConsecutiveFailures(f),
			)
		}
	}
	a.logger.Debug("exporter health", "snapshot", a.health.Snapshot())
}

func (a *Agent) shutdown() {
	if err := a.closeClient(); err != nil {
		a.logger.Warn("scheduler client close failed", "error", err)
	}
}
