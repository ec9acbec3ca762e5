package collector

import (
	"flux-exporter/internal/model"
)

// stateBuckets maps Flux job state names onto exported buckets. States not
// listed here (cleanup, new, anything added upstream later) are not counted
// in any bucket.
var stateBuckets = map[string]model.JobStateBucket{
	"run":      model.BucketRunning,
	"inactive": model.BucketInactive,
	"depend":   model.BucketPending,
	"priority": model.BucketPending,
	"sched":    model.BucketPending,
}

// Classify returns the bucket for a state name. ok is false for states that
// belong to no bucket.
func Classify(stateName string) (bucket model.JobStateBucket, ok bool) {
	bucket, ok = stateBuckets[stateName]
	return bucket, ok
}

// Tally counts jobs per bucket. All buckets start at zero, so an empty list
// yields an all-zero tally rather than nothing.
func Tally(jobs []model.JobSnapshot) model.JobCounts {
	var counts model.JobCounts
	for _, j := range jobs {
		if b, ok := Classify(j.StateName); ok {
			counts[b]++
		}
	}
	return counts
}

// NodeCountFromRank converts the highest 0-indexed broker rank into a node
// count. A negative rank means none was reported.
func NodeCountFromRank(rank int) int64 {
	if rank < 0 {
		return 0
	}
	return int64(rank) + 1
}
