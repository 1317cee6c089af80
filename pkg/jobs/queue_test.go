package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsHandler(t *testing.T) {
	done := make(chan string, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		done <- job.ID
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))

	select {
	case id := <-done:
		assert.Equal(t, "job-1", id)
	case <-time.After(time.Second):
		t.Fatal("handler not invoked")
	}
}

func TestQueueRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if calls.Add(1) < 2 {
			return errors.New("flaky")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 1, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job was not retried")
	}
	assert.EqualValues(t, 2, calls.Load())
}

func TestQueueSkipsRetryForPermanentErrors(t *testing.T) {
	var calls atomic.Int32
	q := NewQueue("permanent", func(ctx context.Context, job Job) error {
		calls.Add(1)
		return Permanent(errors.New("bad input"))
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	time.Sleep(50 * time.Millisecond)
	q.Stop()

	assert.EqualValues(t, 1, calls.Load())
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{ID: "job-1"})
	assert.ErrorIs(t, err, ErrQueueStopped)
}

func TestQueueBusyCountsRunningJobs(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	q := NewQueue("busy", func(ctx context.Context, job Job) error {
		close(started)
		<-release
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "long"}))
	<-started
	assert.Equal(t, 1, q.Busy())

	close(release)
	assert.Eventually(t, func() bool { return q.Busy() == 0 }, time.Second, time.Millisecond)
}
