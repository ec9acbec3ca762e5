// Package flux provides read-only access to a Flux scheduler instance.
package flux

import (
	"context"
	"fmt"
	"strings"

	"flux-exporter/internal/model"
)

// Client is the narrow query surface the collector depends on. Both calls may
// block on the scheduler and may fail.
type Client interface {
	ListJobs(ctx context.Context) ([]model.JobSnapshot, error)
	// HighestRank returns the highest active broker rank, or -1 when the
	// scheduler reports none.
	HighestRank(ctx context.Context) (int, error)
}

// QueryError reports a failed scheduler query.
type QueryError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *QueryError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("flux %s: %v: %s", e.Op, e.Err, e.Stderr)
	}
	return fmt.Sprintf("flux %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// NormalizeState maps scheduler spellings ("RUN", " Sched ") onto the
// lowercase short names used by the classification table.
func NormalizeState(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
