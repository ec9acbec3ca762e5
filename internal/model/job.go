package model

// JobSnapshot is one job as reported by the scheduler at query time.
type JobSnapshot struct {
	ID        string `json:"id"`
	StateName string `json:"state_name"`
}

// JobStateBucket is the closed set of job states exported on flux_job_count.
type JobStateBucket int

const (
	BucketRunning JobStateBucket = iota
	BucketInactive
	BucketPending

	numBuckets
)

var bucketLabels = [numBuckets]string{
	BucketRunning:  "running",
	BucketInactive: "inactive",
	BucketPending:  "pending",
}

func (b JobStateBucket) String() string {
	if !b.Valid() {
		return "unknown"
	}
	return bucketLabels[b]
}

func (b JobStateBucket) Valid() bool {
	return b >= 0 && b < numBuckets
}

// AllBuckets returns every bucket in exposition order.
func AllBuckets() []JobStateBucket {
	return []JobStateBucket{BucketRunning, BucketInactive, BucketPending}
}

// JobCounts holds one tally per bucket. It is a value type; copying it yields
// a consistent snapshot of all three buckets.
type JobCounts [numBuckets]int64

func (c JobCounts) Get(b JobStateBucket) int64 {
	if !b.Valid() {
		return 0
	}
	return c[b]
}

func (c JobCounts) Total() int64 {
	var total int64
	for _, v := range c {
		total += v
	}
	return total
}

// Map renders the counts keyed by label value, for logs and health output.
func (c JobCounts) Map() map[string]int64 {
	out := make(map[string]int64, numBuckets)
	for _, b := range AllBuckets() {
		out[b.String()] = c[b]
	}
	return out
}
