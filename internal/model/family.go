package model

// Family identifies a sub-collection and the gauge family it writes.
type Family string

const (
	FamilyJobs  Family = "jobs"
	FamilyNodes Family = "nodes"
)
