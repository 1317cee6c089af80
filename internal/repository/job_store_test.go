package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/schedulus-api/internal/models"
)

func pendingJob(id string) models.OptimizationJob {
	return models.OptimizationJob{ID: id, Status: models.JobStatusPending, StartedAt: time.Now().UTC()}
}

func TestJobStoreLifecycle(t *testing.T) {
	store := NewJobStore(0)
	_, err := store.Begin(pendingJob("job-1"), false)
	require.NoError(t, err)

	job, err := store.Advance("job-1", 10)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, job.Status)

	_, err = store.Advance("job-1", 5)
	assert.ErrorIs(t, err, ErrProgressRegression)

	done, err := store.Done("job-1")
	require.NoError(t, err)

	job, err = store.Complete("job-1", models.Timetable{Lessons: []models.Lesson{{ID: "l1"}}})
	require.NoError(t, err)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)

	select {
	case <-done:
	default:
		t.Fatal("done channel not closed")
	}

	_, err = store.Fail("job-1", "late")
	assert.ErrorIs(t, err, ErrJobTerminal)
	_, err = store.Advance("job-1", 100)
	assert.ErrorIs(t, err, ErrJobTerminal)

	latest, err := store.LatestCompleted()
	require.NoError(t, err)
	assert.Equal(t, "job-1", latest.ID)
}

func TestJobStoreBeginPolicies(t *testing.T) {
	store := NewJobStore(0)
	_, err := store.Begin(pendingJob("job-1"), false)
	require.NoError(t, err)

	_, err = store.Begin(pendingJob("job-2"), true)
	assert.ErrorIs(t, err, ErrJobInFlight)

	previous, err := store.Begin(pendingJob("job-2"), false)
	require.NoError(t, err)
	require.NotNil(t, previous)
	assert.Equal(t, "job-1", previous.ID)

	current, err := store.Current()
	require.NoError(t, err)
	assert.Equal(t, "job-2", current.ID)
	assert.Len(t, store.InFlight(), 2)
}

func TestJobStoreFailCancelsWork(t *testing.T) {
	store := NewJobStore(0)
	_, err := store.Begin(pendingJob("job-1"), false)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, store.SetCancel("job-1", cancel))

	job, err := store.Fail("job-1", "superseded by job job-2")
	require.NoError(t, err)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "superseded by job job-2", *job.Error)
	assert.Error(t, ctx.Err())

	_, err = store.LatestCompleted()
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobStorePrunesOldTerminalJobs(t *testing.T) {
	store := NewJobStore(2)
	for _, id := range []string{"a", "b", "c"} {
		_, err := store.Begin(pendingJob(id), false)
		require.NoError(t, err)
		_, err = store.Fail(id, "x")
		require.NoError(t, err)
	}
	_, err := store.Get("a")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.Len(t, store.List(), 2)
	assert.Equal(t, "c", store.List()[0].ID)
}

func TestJobStoreRestoreUndoesBegin(t *testing.T) {
	store := NewJobStore(0)
	assert.Empty(t, store.LatestCompletedID())
	_, err := store.Begin(pendingJob("job-1"), false)
	require.NoError(t, err)
	previous, err := store.Begin(pendingJob("job-2"), false)
	require.NoError(t, err)
	require.Equal(t, "job-1", previous.ID)

	store.Restore("job-2", "job-1")
	current, err := store.Current()
	require.NoError(t, err)
	assert.Equal(t, "job-1", current.ID)

	// a later job already took over, so nothing changes
	_, err = store.Begin(pendingJob("job-3"), false)
	require.NoError(t, err)
	store.Restore("job-2", "job-1")
	current, err = store.Current()
	require.NoError(t, err)
	assert.Equal(t, "job-3", current.ID)

	_, err = store.Complete("job-3", models.Timetable{})
	require.NoError(t, err)
	assert.Equal(t, "job-3", store.LatestCompletedID())
}
