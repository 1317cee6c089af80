package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/schedulus-api/internal/dto"
	"github.com/noah-isme/schedulus-api/internal/models"
	appErrors "github.com/noah-isme/schedulus-api/pkg/errors"
	"github.com/noah-isme/schedulus-api/pkg/export"
	"github.com/noah-isme/schedulus-api/pkg/storage"
	"github.com/noah-isme/schedulus-api/pkg/validation"
)

// Export sources.
const (
	ExportSourceCurrent = "current"
	ExportSourceLatest  = "latest"
)

// Timetable export columns.
const (
	columnDay     = "Day"
	columnTime    = "Time"
	columnSubject = "Subject"
	columnTeacher = "Teacher"
	columnGroup   = "Group"
	columnRoom    = "Room"
	columnPinned  = "Pinned"
)

var timetableHeaders = []string{columnDay, columnTime, columnSubject, columnTeacher, columnGroup, columnRoom, columnPinned}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

type timetableSource interface {
	Current(ctx context.Context) (*models.Timetable, bool, error)
}

type latestSource interface {
	Latest(ctx context.Context) (*models.Timetable, bool, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       string
	ExpiresAt    time.Time
}

// ExportDownload is a resolved signed link.
type ExportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
}

// ExportService renders timetables to files and hands out signed download links.
type ExportService struct {
	current   timetableSource
	latest    latestSource
	storage   fileStorage
	renderers map[string]renderer
	signer    *storage.SignedURLSigner
	validate  *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(current timetableSource, latest latestSource, store fileStorage, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	} else {
		validation.UseJSONNames(validate)
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = signer.TTL()
	}
	csv := export.NewCSVExporter()
	pdf := export.NewPDFExporter()
	return &ExportService{
		current: current,
		latest:  latest,
		storage: store,
		renderers: map[string]renderer{
			csv.Extension(): csv,
			pdf.Extension(): pdf,
		},
		signer:   signer,
		validate: validate,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Generate renders the requested timetable, stores the file and returns a signed link to it.
func (s *ExportService) Generate(ctx context.Context, req dto.ExportRequest) (*ExportResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validation.Error(err, "")
	}
	source := req.Source
	if source == "" {
		source = ExportSourceCurrent
	}

	var (
		tt  *models.Timetable
		err error
	)
	switch source {
	case ExportSourceLatest:
		tt, _, err = s.latest.Latest(ctx)
	default:
		tt, _, err = s.current.Current(ctx)
	}
	if err != nil {
		return nil, err
	}

	render := s.renderers[req.Format]
	payload, err := render.Render(s.buildDataset(*tt, source))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("timetables/%s_%s_%s.%s", source, s.now().UTC().Format("20060102_150405"), exportID[:8], render.Extension())
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(exportID, relPath, req.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api"
	}

	s.logger.Info("timetable exported", zap.String("export_id", exportID), zap.String("format", req.Format), zap.String("source", source))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:       req.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// Open resolves a signed token to the stored file.
func (s *ExportService) Open(token string) (*ExportDownload, error) {
	claims, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "download link invalid or expired")
	}
	file, err := s.storage.Open(claims.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	contentType := "application/octet-stream"
	if render, ok := s.renderers[claims.Format]; ok {
		contentType = render.ContentType()
	}
	name := claims.Path
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return &ExportDownload{File: file, Filename: name, ContentType: contentType}, nil
}

// Cleanup removes files older than ttl, defaulting to the link lifetime.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.Cleanup(0)
				if err != nil {
					s.logger.Sugar().Warnw("export cleanup failed", "error", err)
					continue
				}
				if len(deleted) > 0 {
					s.logger.Sugar().Infow("expired exports removed", "count", len(deleted))
				}
			}
		}
	}()
}

func (s *ExportService) buildDataset(tt models.Timetable, source string) export.Dataset {
	lessons := models.CloneLessons(tt.Lessons)
	sort.SliceStable(lessons, func(i, j int) bool {
		a, b := lessons[i], lessons[j]
		if (a.Timeslot == nil) != (b.Timeslot == nil) {
			return a.Timeslot != nil
		}
		if a.Timeslot != nil {
			if da, db := a.Timeslot.DayOfWeek.Index(), b.Timeslot.DayOfWeek.Index(); da != db {
				return da < db
			}
			if a.Timeslot.StartTime != b.Timeslot.StartTime {
				return a.Timeslot.StartTime < b.Timeslot.StartTime
			}
		}
		return a.Subject < b.Subject
	})

	rows := make([]map[string]string, 0, len(lessons))
	for _, lesson := range lessons {
		row := map[string]string{
			columnDay:     "-",
			columnTime:    "-",
			columnSubject: lesson.Subject,
			columnTeacher: lesson.Teacher,
			columnGroup:   lesson.StudentGroup,
			columnRoom:    "-",
			columnPinned:  "no",
		}
		if lesson.Timeslot != nil {
			row[columnDay] = string(lesson.Timeslot.DayOfWeek)
			row[columnTime] = lesson.Timeslot.StartTime + "-" + lesson.Timeslot.EndTime
		}
		if lesson.Room != nil {
			row[columnRoom] = lesson.Room.Name
		}
		if lesson.Pinned {
			row[columnPinned] = "yes"
		}
		rows = append(rows, row)
	}

	title := fmt.Sprintf("Timetable (%s)", source)
	if tt.Score != nil {
		title = fmt.Sprintf("%s score %s", title, tt.Score.String())
	}
	return export.Dataset{
		Title:   title,
		Headers: timetableHeaders,
		Rows:    rows,
		Footer:  fmt.Sprintf("Generated %s", s.now().UTC().Format(time.RFC3339)),
	}
}
