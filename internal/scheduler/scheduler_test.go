package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAddRejectsBadSpecs(t *testing.T) {
	s := New(time.UTC)
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.Add("empty", "", noop))
	assert.Error(t, s.Add("garbage", "every minute", noop))
	assert.Error(t, s.Add("six fields", "0 */15 * * * *", noop))
	assert.NoError(t, s.Add("refresh", "*/15 * * * *", noop))
	assert.NoError(t, s.Add("descriptor", "@hourly", noop))
}

func TestRunExecutesJobsAndStops(t *testing.T) {
	s := New(time.UTC)

	var runs atomic.Int32
	done := make(chan struct{})
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			close(done)
		}
		return errors.New("logged, not fatal")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(stopped)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}
	cancel()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}

func TestRunCancelsJobContext(t *testing.T) {
	s := New(time.UTC)

	started := make(chan struct{})
	var once sync.Once
	var sawCancel atomic.Bool
	require.NoError(t, s.Add("long", "@every 1s", func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(stopped)
	}()

	<-started
	cancel()
	<-stopped
	assert.True(t, sawCancel.Load())
}
