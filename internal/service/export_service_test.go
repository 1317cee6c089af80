package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/schedulus-api/internal/dto"
	"github.com/noah-isme/schedulus-api/internal/models"
	"github.com/noah-isme/schedulus-api/internal/repository"
	"github.com/noah-isme/schedulus-api/internal/scheduler"
	appErrors "github.com/noah-isme/schedulus-api/pkg/errors"
	"github.com/noah-isme/schedulus-api/pkg/storage"
)

func newExportFixture(t *testing.T) (*ExportService, *storage.SignedURLSigner) {
	t.Helper()
	session := newSeededSession(t)
	optimizer := scheduler.NewOptimizer(3)
	session.ReplaceLessons(optimizer.InitialAssignment(session.Lessons(), session.Timeslots(), session.Rooms()))

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	timetables := NewTimetableService(session, nil, zap.NewNop())
	optimizations := NewOptimizationService(repository.NewJobStore(0), session, nil, nil, nil, nil, nil, nil, nil, OptimizationConfig{})
	svc := NewExportService(timetables, optimizations, store, signer, nil, zap.NewNop(), ExportConfig{APIPrefix: "/api"})
	return svc, signer
}

func TestExportServiceCSVRoundTrip(t *testing.T) {
	svc, _ := newExportFixture(t)

	result, err := svc.Generate(context.Background(), dto.ExportRequest{Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, "/api/exports/"+result.Token, result.URL)
	assert.True(t, strings.HasPrefix(result.RelativePath, "timetables/current_"))
	assert.WithinDuration(t, time.Now().Add(time.Minute), result.ExpiresAt, 5*time.Second)

	download, err := svc.Open(result.Token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "text/csv", download.ContentType)
	assert.True(t, strings.HasSuffix(download.Filename, ".csv"))

	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	assert.Equal(t, "Day,Time,Subject,Teacher,Group,Room,Pinned", lines[0])
	assert.Len(t, lines, 11)
	previous := 0
	for _, line := range lines[1:] {
		day, _, _ := strings.Cut(line, ",")
		idx := models.DayOfWeek(day).Index()
		require.NotZero(t, idx, line)
		assert.GreaterOrEqual(t, idx, previous)
		previous = idx
	}
}

func TestExportServicePDF(t *testing.T) {
	svc, _ := newExportFixture(t)

	result, err := svc.Generate(context.Background(), dto.ExportRequest{Format: "pdf", Source: "current"})
	require.NoError(t, err)

	download, err := svc.Open(result.Token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "application/pdf", download.ContentType)
	head := make([]byte, 4)
	_, err = io.ReadFull(download.File, head)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(head))
}

func TestExportServiceLatestRequiresCompletedJob(t *testing.T) {
	svc, _ := newExportFixture(t)

	_, err := svc.Generate(context.Background(), dto.ExportRequest{Format: "csv", Source: "latest"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestExportServiceValidation(t *testing.T) {
	svc, _ := newExportFixture(t)

	_, err := svc.Generate(context.Background(), dto.ExportRequest{Format: "xlsx"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportServiceRejectsBadTokens(t *testing.T) {
	svc, _ := newExportFixture(t)

	_, err := svc.Open("not-a-token")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	foreign, _, err := storage.NewSignedURLSigner("other", time.Minute).Generate("x", "timetables/x.csv", "csv")
	require.NoError(t, err)
	_, err = svc.Open(foreign)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestExportServiceMissingFile(t *testing.T) {
	svc, signer := newExportFixture(t)

	token, _, err := signer.Generate("gone", "timetables/gone.csv", "csv")
	require.NoError(t, err)
	_, err = svc.Open(token)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
