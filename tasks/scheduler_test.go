package tasks

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedulerValidatesSpec(t *testing.T) {
	nop := func(context.Context) error { return nil }

	_, err := NewScheduler("not a schedule", nop)
	assert.ErrorContains(t, err, "invalid cron schedule")

	_, err = NewScheduler("61 4 * * *", nop)
	assert.Error(t, err)

	s, err := NewScheduler("0 4 * * *", nop)
	require.NoError(t, err)
	assert.True(t, s.NextRun().IsZero())
}

func TestSchedulerTriggersRuns(t *testing.T) {
	var runs atomic.Int32
	s, err := NewScheduler("@every 100ms", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	assert.False(t, s.NextRun().IsZero())

	assert.ErrorContains(t, s.Start(ctx), "already running")

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 3*time.Second, 20*time.Millisecond)
	cancel()
	s.Stop()
}

func TestSchedulerNeverOverlapsRuns(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	s, err := NewScheduler("@every 50ms", func(context.Context) error {
		cur := inFlight.Add(1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(180 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	time.Sleep(600 * time.Millisecond)
	cancel()
	s.Stop()

	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s, err := NewScheduler("@daily", func(context.Context) error { return nil })
	require.NoError(t, err)

	s.Stop()
}
