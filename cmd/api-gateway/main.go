package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-timetable-api/pkg/validation"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Weekly timetable management with teacher and class conflict detection
// @BasePath /api/v1
// @schemes http

const shutdownTimeout = 10 * time.Second

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to migrate schema", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, timetable cache disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	validate := validation.New()
	entryRepo := repository.NewScheduleEntryRepository(db)
	assignmentRepo := repository.NewTeachingAssignmentRepository(db)
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient),
		metricsSvc,
		cfg.Timetable.CacheTTL,
		logr,
		cfg.Timetable.CacheEnabled && redisClient != nil,
	)

	scheduleSvc := service.NewScheduleService(service.ScheduleServiceParams{
		Entries:     entryRepo,
		Assignments: assignmentRepo,
		Cache:       cacheSvc,
		Metrics:     metricsSvc,
		Validator:   validate,
		Logger:      logr,
		CSV:         export.NewCSVExporter(),
		PDF:         export.NewPDFExporter(),
		XLSX:        export.NewXLSXExporter(),
		Config: service.ScheduleServiceConfig{
			RequestTimeout:  cfg.Timetable.RequestTimeout,
			DefaultPageSize: cfg.Timetable.DefaultPageSize,
			MaxPageSize:     cfg.Timetable.MaxPageSize,
		},
	})
	assignmentSvc := service.NewTeachingAssignmentService(assignmentRepo, scheduleSvc, validate, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
		"postgres": db,
		"redis":    cache.NewProbe(redisClient),
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, cfg.Metrics.Path, "/health", "/ready"))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if metricsSvc != nil {
		r.GET(cfg.Metrics.Path, metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Routes{
		Schedules:   handler.NewScheduleHandler(scheduleSvc),
		Assignments: handler.NewAssignmentHandler(assignmentSvc),
		Metrics:     metricsHandler,
	}.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "cache", cacheSvc.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
