package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/schedulus-api/internal/dto"
	"github.com/noah-isme/schedulus-api/internal/middleware"
	"github.com/noah-isme/schedulus-api/internal/models"
	"github.com/noah-isme/schedulus-api/internal/service"
	appErrors "github.com/noah-isme/schedulus-api/pkg/errors"
	"github.com/noah-isme/schedulus-api/pkg/response"
)

type lessonManager interface {
	List(ctx context.Context) ([]models.Lesson, bool, error)
	Add(ctx context.Context, req dto.CreateLessonRequest) (*models.Lesson, error)
	Remove(ctx context.Context, id string) error
	TogglePin(ctx context.Context, id string) (*models.Lesson, error)
	Import(ctx context.Context, filename string, r io.Reader) ([]models.Lesson, error)
	ExportCSV(ctx context.Context) ([]byte, error)
}

// LessonHandler exposes lesson CRUD plus spreadsheet import and export.
type LessonHandler struct {
	service       lessonManager
	maxImportSize int64
}

// NewLessonHandler constructs the handler. maxImportSize bounds uploaded spreadsheets.
func NewLessonHandler(svc *service.LessonService, maxImportSize int64) *LessonHandler {
	return &LessonHandler{service: svc, maxImportSize: maxImportSize}
}

// List godoc
// @Summary List lessons of the session timetable
// @Tags Lessons
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /lessons [get]
func (h *LessonHandler) List(c *gin.Context) {
	lessons, cacheHit, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.OK(c, lessons, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Add a lesson
// @Description Missing difficulty and satisfaction values are predicted. The lesson is placed in a random timeslot and room.
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body dto.CreateLessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /lessons [post]
func (h *LessonHandler) Create(c *gin.Context) {
	var req dto.CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, badRequest(err, "invalid lesson payload"))
		return
	}
	lesson, err := h.service.Add(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// Delete godoc
// @Summary Remove a lesson
// @Tags Lessons
// @Param id path string true "Lesson ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id} [delete]
func (h *LessonHandler) Delete(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// TogglePin godoc
// @Summary Toggle the pinned flag of a lesson
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id}/pin [patch]
func (h *LessonHandler) TogglePin(c *gin.Context) {
	lesson, err := h.service.TogglePin(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, lesson)
}

// Import godoc
// @Summary Import lessons from a CSV or XLSX file
// @Tags Lessons
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Spreadsheet with subject, teacher and student_group columns"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /lessons/import [post]
func (h *LessonHandler) Import(c *gin.Context) {
	if h.maxImportSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImportSize+1<<20)
	}
	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "upload exceeds size limit"))
			return
		}
		response.Error(c, badRequest(err, `multipart field "file" is required`))
		return
	}
	if h.maxImportSize > 0 && header.Size > h.maxImportSize {
		response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", h.maxImportSize)))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, badRequest(err, "unable to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	lessons, err := h.service.Import(c.Request.Context(), header.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lessons)
}

// Export godoc
// @Summary Download lessons as CSV
// @Tags Lessons
// @Produce text/csv
// @Success 200 {file} file
// @Router /lessons/export [get]
func (h *LessonHandler) Export(c *gin.Context) {
	payload, err := h.service.ExportCSV(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="lessons.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", payload)
}
