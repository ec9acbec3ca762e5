package collector

import (
	"context"

	"flux-exporter/internal/flux"
	"flux-exporter/internal/model"
)

type JobCollector struct {
	client flux.Client
}

func NewJobCollector(client flux.Client) *JobCollector {
	return &JobCollector{client: client}
}

// Collect lists every job and returns the per-bucket tally along with the
// number of jobs the scheduler reported.
func (c *JobCollector) Collect(ctx context.Context) (model.JobCounts, int, error) {
	jobs, err := c.client.ListJobs(ctx)
	if err != nil {
		return model.JobCounts{}, 0, err
	}
	return Tally(jobs), len(jobs), nil
}
