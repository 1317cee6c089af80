package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/schedulus-api/internal/models"
)

func newArchiveMock(t *testing.T) (*JobArchiveRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewJobArchiveRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

var archiveColumns = []string{"id", "status", "progress", "started_at", "completed_at", "result", "error"}

func TestJobArchiveEnsureSchema(t *testing.T) {
	repo, mock, cleanup := newArchiveMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS optimization_jobs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobArchiveSave(t *testing.T) {
	repo, mock, cleanup := newArchiveMock(t)
	defer cleanup()

	completed := time.Now().UTC()
	job := models.OptimizationJob{
		ID:          "2b1f0b7e-6a8e-4c55-9d0c-6c3a4d1f2e10",
		Status:      models.JobStatusCompleted,
		Progress:    100,
		StartedAt:   completed.Add(-2 * time.Second),
		CompletedAt: &completed,
		Result:      &models.TimetableValue{Timetable: models.Timetable{Lessons: []models.Lesson{{ID: "l1"}}}},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO optimization_jobs")).
		WithArgs(job.ID, models.JobStatusCompleted, 100, job.StartedAt, sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Save(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobArchiveLatestCompleted(t *testing.T) {
	repo, mock, cleanup := newArchiveMock(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(archiveColumns).
		AddRow("job-1", "COMPLETED", 100, now.Add(-time.Second), now, []byte(`{"timeslots":[],"rooms":[],"lessons":[{"id":"l1","subject":"Algorithms"}],"score":{"hard_score":0,"soft_score":2}}`), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM optimization_jobs WHERE status = 'COMPLETED' ORDER BY completed_at DESC LIMIT 1")).
		WillReturnRows(rows)

	job, err := repo.LatestCompleted(context.Background())
	require.NoError(t, err)
	require.NotNil(t, job.Result)
	assert.Equal(t, "Algorithms", job.Result.Lessons[0].Subject)
	assert.Equal(t, 2, job.Result.Score.SoftScore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobArchiveLatestCompletedEmpty(t *testing.T) {
	repo, mock, cleanup := newArchiveMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM optimization_jobs WHERE status = 'COMPLETED'")).
		WillReturnRows(sqlmock.NewRows(archiveColumns))

	_, err := repo.LatestCompleted(context.Background())
	assert.ErrorIs(t, err, ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobArchiveGetAndList(t *testing.T) {
	repo, mock, cleanup := newArchiveMock(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM optimization_jobs WHERE id = $1")).
		WithArgs("job-2").
		WillReturnRows(sqlmock.NewRows(archiveColumns).AddRow("job-2", "FAILED", 100, now, now, nil, "superseded by job job-3"))

	job, err := repo.GetByID(context.Background(), "job-2")
	require.NoError(t, err)
	assert.Nil(t, job.Result)
	require.NotNil(t, job.Error)
	assert.Equal(t, "superseded by job job-3", *job.Error)

	mock.ExpectQuery(regexp.QuoteMeta("FROM optimization_jobs ORDER BY started_at DESC LIMIT $1")).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows(archiveColumns).AddRow("job-2", "FAILED", 100, now, now, nil, nil))

	jobs, err := repo.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
