package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/schedulus-api/internal/models"
)

const jobArchiveSchema = `CREATE TABLE IF NOT EXISTS optimization_jobs (
	id UUID PRIMARY KEY,
	status VARCHAR(16) NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	result JSONB,
	error TEXT
)`

const jobArchiveColumns = `id, status, progress, started_at, completed_at, result, error`

// JobArchiveRepository persists finished optimization jobs in postgres.
type JobArchiveRepository struct {
	db *sqlx.DB
}

// NewJobArchiveRepository constructs the repository.
func NewJobArchiveRepository(db *sqlx.DB) *JobArchiveRepository {
	return &JobArchiveRepository{db: db}
}

// EnsureSchema creates the archive table when missing.
func (r *JobArchiveRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, jobArchiveSchema); err != nil {
		return fmt.Errorf("ensure optimization_jobs table: %w", err)
	}
	return nil
}

// Save upserts a job row.
func (r *JobArchiveRepository) Save(ctx context.Context, job models.OptimizationJob) error {
	const query = `INSERT INTO optimization_jobs (id, status, progress, started_at, completed_at, result, error)
VALUES (:id, :status, :progress, :started_at, :completed_at, :result, :error)
ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, progress = EXCLUDED.progress,
completed_at = EXCLUDED.completed_at, result = EXCLUDED.result, error = EXCLUDED.error`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("save optimization job: %w", err)
	}
	return nil
}

// GetByID returns an archived job.
func (r *JobArchiveRepository) GetByID(ctx context.Context, id string) (*models.OptimizationJob, error) {
	query := `SELECT ` + jobArchiveColumns + ` FROM optimization_jobs WHERE id = $1`
	var job models.OptimizationJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get optimization job: %w", err)
	}
	return &job, nil
}

// LatestCompleted returns the most recently completed archived job.
func (r *JobArchiveRepository) LatestCompleted(ctx context.Context) (*models.OptimizationJob, error) {
	query := `SELECT ` + jobArchiveColumns + ` FROM optimization_jobs WHERE status = 'COMPLETED' ORDER BY completed_at DESC LIMIT 1`
	var job models.OptimizationJob
	if err := r.db.GetContext(ctx, &job, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("latest optimization job: %w", err)
	}
	return &job, nil
}

// List returns archived jobs newest first without their result payloads.
func (r *JobArchiveRepository) List(ctx context.Context, limit int) ([]models.OptimizationJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT id, status, progress, started_at, completed_at, NULL AS result, error
FROM optimization_jobs ORDER BY started_at DESC LIMIT $1`
	var jobs []models.OptimizationJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list optimization jobs: %w", err)
	}
	return jobs, nil
}
