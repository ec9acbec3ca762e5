package flux

import (
	"flux-exporter/internal/model"
)

// Wire frames exchanged with the scheduler gateway over the JSON codec.

type ListJobsRequest struct {
	IncludeInactive bool `json:"include_inactive"`
}

type ListJobsResponse struct {
	Jobs []JobFrame `json:"jobs"`
}

type JobFrame struct {
	ID        string `json:"id"`
	StateName string `json:"state_name"`
}

type GetRankRequest struct{}

type GetRankResponse struct {
	// Rank is null when the gateway has no broker rank to report.
	Rank *int `json:"rank"`
}

func (r ListJobsResponse) Snapshots() []model.JobSnapshot {
	out := make([]model.JobSnapshot, 0, len(r.Jobs))
	for _, j := range r.Jobs {
		out = append(out, model.JobSnapshot{ID: j.ID, StateName: NormalizeState(j.StateName)})
	}
	return out
}

func (r GetRankResponse) HighestRank() int {
	if r.Rank == nil {
		return -1
	}
	return *r.Rank
}
