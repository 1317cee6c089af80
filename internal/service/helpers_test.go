package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/schedulus-api/internal/models"
	"github.com/noah-isme/schedulus-api/internal/repository"
	"github.com/noah-isme/schedulus-api/internal/seed"
	appErrors "github.com/noah-isme/schedulus-api/pkg/errors"
)

type memoryCacheRepo struct {
	mu          sync.Mutex
	store       map[string][]byte
	invalidated []string
}

func (s *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.store {
		if strings.HasPrefix(key, prefix) {
			delete(s.store, key)
		}
	}
	return nil
}

type archiveStub struct {
	mu    sync.Mutex
	saved map[string]models.OptimizationJob
}

func (a *archiveStub) Save(_ context.Context, job models.OptimizationJob) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.saved == nil {
		a.saved = make(map[string]models.OptimizationJob)
	}
	a.saved[job.ID] = job.Clone()
	return nil
}

func (a *archiveStub) GetByID(_ context.Context, id string) (*models.OptimizationJob, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	job, ok := a.saved[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	return &job, nil
}

func (a *archiveStub) LatestCompleted(_ context.Context) (*models.OptimizationJob, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var latest *models.OptimizationJob
	for _, job := range a.saved {
		if job.Status != models.JobStatusCompleted {
			continue
		}
		if latest == nil || job.CompletedAt.After(*latest.CompletedAt) {
			j := job
			latest = &j
		}
	}
	if latest == nil {
		return nil, repository.ErrJobNotFound
	}
	return latest, nil
}

func (a *archiveStub) get(id string) (models.OptimizationJob, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	job, ok := a.saved[id]
	return job, ok
}

func newSeededSession(t *testing.T) *repository.SessionStore {
	t.Helper()
	ds, err := seed.Default()
	require.NoError(t, err)
	return repository.NewSessionStore(ds.Timeslots, ds.Rooms, ds.Lessons)
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
