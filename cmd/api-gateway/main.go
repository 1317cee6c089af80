package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/schedulus-api/api/swagger"
	"github.com/noah-isme/schedulus-api/internal/handler"
	"github.com/noah-isme/schedulus-api/internal/middleware"
	"github.com/noah-isme/schedulus-api/internal/repository"
	"github.com/noah-isme/schedulus-api/internal/scheduler"
	"github.com/noah-isme/schedulus-api/internal/seed"
	"github.com/noah-isme/schedulus-api/internal/service"
	"github.com/noah-isme/schedulus-api/pkg/cache"
	"github.com/noah-isme/schedulus-api/pkg/config"
	"github.com/noah-isme/schedulus-api/pkg/database"
	"github.com/noah-isme/schedulus-api/pkg/jobs"
	"github.com/noah-isme/schedulus-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/schedulus-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/schedulus-api/pkg/middleware/requestid"
	"github.com/noah-isme/schedulus-api/pkg/storage"
)

// @title Schedulus API
// @version 1.0.0
// @description Timetable scheduling service: lessons, conflict scoring and asynchronous optimization jobs.
// @BasePath /api
// @schemes http

const maxJSONBody = 1 << 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataset, err := seed.Load(cfg.SeedFile)
	if err != nil {
		logr.Fatal("failed to load seed dataset", zap.String("path", cfg.SeedFile), zap.Error(err))
	}
	optimizer := scheduler.NewOptimizer(cfg.Optimizer.Seed)
	session := repository.NewSessionStore(dataset.Timeslots, dataset.Rooms, nil)
	session.ReplaceLessons(optimizer.InitialAssignment(dataset.Lessons, dataset.Timeslots, dataset.Rooms))

	metrics := service.NewMetricsService()
	metrics.SetLessonCount(len(dataset.Lessons))
	checks := map[string]handler.ReadinessCheck{}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(redisClient, "schedulus", logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
			checks["redis"] = repo.Ping
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cacheRepo != nil)

	var archive service.JobArchive
	if cfg.Archive.Enabled {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Warn("postgres unavailable, job archive disabled", zap.Error(err))
		} else {
			defer db.Close() //nolint:errcheck
			repo := repository.NewJobArchiveRepository(db)
			if err := repo.EnsureSchema(ctx); err != nil {
				logr.Fatal("failed to prepare job archive schema", zap.Error(err))
			}
			archive = repo
			checks["postgres"] = pingDB(db)
		}
	}

	validate := validator.New()
	predictor := scheduler.NewPredictor()
	jobStore := repository.NewJobStore(0)

	worker := service.NewOptimizationWorker(jobStore, session, optimizer, archive, cacheSvc, metrics, cfg.Optimizer.TickDelays, logr)
	queue := jobs.NewQueue(service.JobTypeOptimize, worker.Handle, jobs.QueueConfig{
		Workers: cfg.Optimizer.Workers,
		Logger:  logr,
	})
	queue.Start(ctx)
	if err := metrics.TrackWorkers(queue.Busy); err != nil {
		logr.Warn("failed to register worker gauge", zap.Error(err))
	}

	optimizations := service.NewOptimizationService(jobStore, session, queue, archive, predictor, validate, cacheSvc, metrics, logr, service.OptimizationConfig{
		Policy:    cfg.Optimizer.Policy,
		TimeLimit: cfg.Optimizer.TimeLimit,
	})
	timetables := service.NewTimetableService(session, cacheSvc, logr)
	lessons := service.NewLessonService(session, optimizer, predictor, validate, cacheSvc, metrics, logr)

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exports := service.NewExportService(timetables, optimizations, files, signer, validate, logr, service.ExportConfig{
		APIPrefix:       cfg.APIPrefix,
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	exports.StartCleanup(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/health", "/ready", "/metrics"))

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta(), middleware.KeyCase(maxJSONBody))
	api.GET("/metrics/summary", metricsHandler.Snapshot)
	handler.Register(api, handler.Handlers{
		Lessons:   handler.NewLessonHandler(lessons, cfg.Import.MaxFileSizeBytes),
		Schedules: handler.NewScheduleHandler(optimizations, timetables),
		Exports:   handler.NewExportHandler(exports),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "lessons", len(dataset.Lessons))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown", zap.Error(err))
	}
	queue.Stop()
	optimizations.Shutdown(shutdownCtx)
}

func pingDB(db *sqlx.DB) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}
