package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/schedulus-api/internal/dto"
	"github.com/noah-isme/schedulus-api/internal/middleware"
	"github.com/noah-isme/schedulus-api/internal/models"
	"github.com/noah-isme/schedulus-api/internal/scheduler"
	"github.com/noah-isme/schedulus-api/internal/service"
	"github.com/noah-isme/schedulus-api/pkg/response"
)

type optimizationRunner interface {
	Start(ctx context.Context, req dto.OptimizationRequest) (*models.OptimizationJob, error)
	Status(ctx context.Context, id string) (*models.OptimizationJob, error)
	Wait(ctx context.Context, id string) (*models.OptimizationJob, error)
	List() []models.OptimizationJob
	Latest(ctx context.Context) (*models.Timetable, bool, error)
}

type timetableReader interface {
	Current(ctx context.Context) (*models.Timetable, bool, error)
	Conflicts() []scheduler.Conflict
	Timeslots() []models.Timeslot
	Rooms() []models.Room
}

// ScheduleHandler exposes timetable reads and optimization jobs.
type ScheduleHandler struct {
	optimizer  optimizationRunner
	timetables timetableReader
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(optimizer *service.OptimizationService, timetables *service.TimetableService) *ScheduleHandler {
	return &ScheduleHandler{optimizer: optimizer, timetables: timetables}
}

// Latest godoc
// @Summary Latest optimized timetable
// @Description Result of the most recently completed optimization job.
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/latest [get]
func (h *ScheduleHandler) Latest(c *gin.Context) {
	timetable, cacheHit, err := h.optimizer.Latest(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.OK(c, timetable, middleware.ExtractMeta(c))
}

// Current godoc
// @Summary Current session timetable
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedules/current [get]
func (h *ScheduleHandler) Current(c *gin.Context) {
	timetable, cacheHit, err := h.timetables.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.OK(c, timetable, middleware.ExtractMeta(c))
}

// Conflicts godoc
// @Summary Hard constraint violations of the session timetable
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedules/conflicts [get]
func (h *ScheduleHandler) Conflicts(c *gin.Context) {
	response.OK(c, h.timetables.Conflicts())
}

// Optimize godoc
// @Summary Submit an optimization job
// @Description Without lessons the session timetable is optimized and updated on completion.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.OptimizationRequest false "Optional problem payload"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/optimize [post]
func (h *ScheduleHandler) Optimize(c *gin.Context) {
	var req dto.OptimizationRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, badRequest(err, "invalid optimization payload"))
			return
		}
	}
	job, err := h.optimizer.Start(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("%s/jobs/%s", pathPrefix(c.FullPath(), "/optimize"), job.ID))
	response.Accepted(c, dto.OptimizationJobResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		StartedAt: job.StartedAt.Format(time.RFC3339Nano),
	})
}

// JobStatus godoc
// @Summary Optimization job status
// @Description With wait (e.g. 10s) the request blocks until the job finishes or the wait elapses.
// @Tags Schedules
// @Produce json
// @Param id path string true "Job ID"
// @Param wait query string false "Long-poll duration, max 60s"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/jobs/{id} [get]
func (h *ScheduleHandler) JobStatus(c *gin.Context) {
	wait, err := waitParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id := c.Param("id")
	if wait == 0 {
		job, err := h.optimizer.Status(c.Request.Context(), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, job)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
	defer cancel()
	job, err := h.optimizer.Wait(ctx, id)
	if job == nil {
		response.Error(c, err)
		return
	}
	response.OK(c, job)
}

// Jobs godoc
// @Summary Optimization jobs held in memory, newest first
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedules/jobs [get]
func (h *ScheduleHandler) Jobs(c *gin.Context) {
	response.OK(c, h.optimizer.List())
}

// Timeslots godoc
// @Summary Fixed timeslot set
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timeslots [get]
func (h *ScheduleHandler) Timeslots(c *gin.Context) {
	response.OK(c, h.timetables.Timeslots())
}

// Rooms godoc
// @Summary Fixed room set
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *ScheduleHandler) Rooms(c *gin.Context) {
	response.OK(c, h.timetables.Rooms())
}

func pathPrefix(fullPath, suffix string) string {
	if len(fullPath) >= len(suffix) && fullPath[len(fullPath)-len(suffix):] == suffix {
		return fullPath[:len(fullPath)-len(suffix)]
	}
	return fullPath
}
