package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExpirer struct {
	calls atomic.Int32
	limit atomic.Int32
}

func (c *countingExpirer) ExpireStale(_ context.Context, limit int) (int, error) {
	c.calls.Add(1)
	c.limit.Store(int32(limit))
	return 1, nil
}

type countingPurger struct {
	calls atomic.Int32
}

func (c *countingPurger) Purge(_ context.Context, before time.Time) (int64, error) {
	c.calls.Add(1)
	return 0, nil
}

func TestScheduler_RunsJobs(t *testing.T) {
	expirer := &countingExpirer{}
	purger := &countingPurger{}

	s, err := New(Config{
		ExpireInterval:     20 * time.Millisecond,
		ExpireBatch:        25,
		PurgeInterval:      20 * time.Millisecond,
		RateLimitRetention: time.Hour,
	}, expirer, purger)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Jobs())
	assert.ElementsMatch(t, []string{JobExpireStaleRuns, JobPurgeRateLimits}, s.JobNames())

	s.Start()
	defer func() { assert.NoError(t, s.Shutdown()) }()

	require.Eventually(t, func() bool {
		return expirer.calls.Load() > 0 && purger.calls.Load() > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(25), expirer.limit.Load())
}

func TestScheduler_SkipsDisabledJobs(t *testing.T) {
	s, err := New(Config{ExpireInterval: time.Minute}, &countingExpirer{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Jobs())
	assert.Equal(t, []string{"expire-stale-runs"}, s.JobNames())
	assert.NoError(t, s.Shutdown())
}
