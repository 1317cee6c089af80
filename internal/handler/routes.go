package handler

import "github.com/gin-gonic/gin"

// Handlers groups the HTTP handlers mounted under the API prefix.
type Handlers struct {
	Lessons   *LessonHandler
	Schedules *ScheduleHandler
	Exports   *ExportHandler
}

// Register mounts the API routes on group.
func Register(api gin.IRouter, h Handlers) {
	schedules := api.Group("/schedules")
	schedules.GET("/latest", h.Schedules.Latest)
	schedules.GET("/current", h.Schedules.Current)
	schedules.GET("/conflicts", h.Schedules.Conflicts)
	schedules.POST("/optimize", h.Schedules.Optimize)
	schedules.GET("/jobs", h.Schedules.Jobs)
	schedules.GET("/jobs/:id", h.Schedules.JobStatus)
	schedules.POST("/export", h.Exports.Create)

	api.GET("/exports/:token", h.Exports.Download)

	lessons := api.Group("/lessons")
	lessons.GET("", h.Lessons.List)
	lessons.POST("", h.Lessons.Create)
	lessons.POST("/import", h.Lessons.Import)
	lessons.GET("/export", h.Lessons.Export)
	lessons.DELETE("/:id", h.Lessons.Delete)
	lessons.PATCH("/:id/pin", h.Lessons.TogglePin)

	api.GET("/timeslots", h.Schedules.Timeslots)
	api.GET("/rooms", h.Schedules.Rooms)
}
