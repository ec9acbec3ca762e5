package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStateBucketLabels(t *testing.T) {
	assert.Equal(t, "running", BucketRunning.String())
	assert.Equal(t, "inactive", BucketInactive.String())
	assert.Equal(t, "pending", BucketPending.String())
	assert.Equal(t, "unknown", JobStateBucket(-1).String())
	assert.False(t, JobStateBucket(3).Valid())
}

func TestJobCounts(t *testing.T) {
	var c JobCounts
	c[BucketRunning] = 2
	c[BucketPending] = 5

	assert.Equal(t, int64(7), c.Total())
	assert.Equal(t, int64(0), c.Get(JobStateBucket(9)))
	assert.Equal(t, map[string]int64{"running": 2, "inactive": 0, "pending": 5}, c.Map())

	copied := c
	copied[BucketRunning] = 0
	assert.Equal(t, int64(2), c.Get(BucketRunning))
}
