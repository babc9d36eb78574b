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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lnd-admin-api/api/swagger"
	"github.com/noah-isme/lnd-admin-api/internal/handler"
	internalmiddleware "github.com/noah-isme/lnd-admin-api/internal/middleware"
	"github.com/noah-isme/lnd-admin-api/internal/repository"
	"github.com/noah-isme/lnd-admin-api/internal/service"
	"github.com/noah-isme/lnd-admin-api/pkg/cache"
	"github.com/noah-isme/lnd-admin-api/pkg/config"
	"github.com/noah-isme/lnd-admin-api/pkg/database"
	"github.com/noah-isme/lnd-admin-api/pkg/jobs"
	"github.com/noah-isme/lnd-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lnd-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lnd-admin-api/pkg/middleware/requestid"
	"github.com/noah-isme/lnd-admin-api/pkg/storage"
)

// @title L&D Admin API
// @version 1.0.0
// @description Course, mentor cost and enrollment administration for learning and development programs
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	if cfg.RunMigrations {
		if err := database.Migrate(ctx, db, logr); err != nil {
			logr.Sugar().Fatalw("failed to run migrations", "error", err)
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	readiness := map[string]handler.Pinger{"postgres": db}
	var snapshots service.SnapshotStore
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer client.Close()
			snapshots = repository.NewSnapshotRepository(client)
			readiness["redis"] = handler.PingFunc(func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			})
		}
	}
	cacheSvc := service.NewCacheService(snapshots, metrics, cfg.Cache.CourseTTL, logr, snapshots != nil)

	courseRepo := repository.NewCourseRepository(db)
	draftRepo := repository.NewCourseDraftRepository(db)
	assignmentRepo := repository.NewMentorAssignmentRepository(db)
	mentorRepo := repository.NewMentorRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	importRepo := repository.NewImportJobRepository(db)
	userRepo := repository.NewUserRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "lnd-admin-api",
	})
	if cfg.Bootstrap.AdminEmail != "" {
		created, err := authSvc.EnsureBootstrapAdmin(ctx, service.BootstrapAdmin{
			Email:    cfg.Bootstrap.AdminEmail,
			Password: cfg.Bootstrap.AdminPassword,
			FullName: cfg.Bootstrap.AdminName,
		})
		if err != nil {
			logr.Sugar().Fatalw("failed to bootstrap admin", "error", err)
		}
		if created {
			logr.Info("bootstrap admin created", zap.String("email", cfg.Bootstrap.AdminEmail))
		}
	}

	reader := service.NewCourseReader(courseRepo, draftRepo, assignmentRepo)
	courseSvc := service.NewCourseService(service.CourseServiceParams{
		Courses:     courseRepo,
		Reader:      reader,
		Comments:    commentRepo,
		Enrollments: enrollmentRepo,
		Audit:       userRepo,
		Cache:       cacheSvc,
		CostTTL:     cfg.Cache.CourseTTL,
		Validator:   validate,
		Logger:      logr,
	})
	draftSvc := service.NewDraftService(service.DraftServiceParams{
		Courses:   courseRepo,
		Drafts:    draftRepo,
		Mentors:   mentorRepo,
		Reader:    reader,
		Audit:     userRepo,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
	})
	costSvc := service.NewCourseCostService(service.CourseCostServiceParams{
		Courses:     courseRepo,
		Drafts:      draftRepo,
		Assignments: assignmentRepo,
		Mentors:     mentorRepo,
		Reader:      reader,
		Audit:       userRepo,
		Cache:       cacheSvc,
		Validator:   validate,
		Logger:      logr,
	})
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	mentorSvc := service.NewMentorService(mentorRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(service.EnrollmentServiceParams{
		Enrollments: enrollmentRepo,
		Courses:     courseRepo,
		Students:    studentRepo,
		Audit:       userRepo,
		Cache:       cacheSvc,
		Metrics:     metrics,
		AnnualLimit: cfg.Enrollments.AnnualLimit,
		Validator:   validate,
		Logger:      logr,
	})
	reportSvc := service.NewReportService(service.ReportServiceParams{
		Reader:      reader,
		Enrollments: enrollmentRepo,
		Metrics:     metrics,
		Logger:      logr,
	})
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Courses:     courseRepo,
		Reader:      reader,
		Enrollments: enrollmentRepo,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Logger:      logr,
		Config:      service.DashboardServiceConfig{CacheTTL: cfg.Cache.DashboardTTL},
	})

	files, err := storage.NewLocalStorage(cfg.Imports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare import storage", "error", err)
	}
	worker := service.NewImportWorker(service.ImportWorkerParams{
		Jobs:        importRepo,
		Files:       files,
		Courses:     courseRepo,
		Students:    studentSvc,
		Enrollments: enrollmentSvc,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Logger:      logr,
	})
	importQueue := jobs.NewQueue("imports", worker.Handle, jobs.QueueConfig{
		Workers:     cfg.Imports.WorkerConcurrency,
		MaxRetries:  cfg.Imports.WorkerRetries,
		RetryDelay:  cfg.Imports.RetryDelay,
		OnExhausted: worker.HandleExhausted,
		Logger:      logr,
	})
	importQueue.Start(ctx)
	defer importQueue.Stop()

	importSvc := service.NewImportService(importRepo, files, courseRepo, importQueue, logr, service.ImportServiceConfig{
		MaxFileSize:     cfg.Imports.MaxFileSizeBytes,
		CleanupInterval: cfg.Imports.CleanupInterval,
		FileRetention:   cfg.Imports.FileRetention,
	})
	if n := importSvc.RecoverPendingJobs(ctx); n > 0 {
		logr.Info("requeued unfinished imports", zap.Int("count", n))
	}
	importSvc.StartCleanup(ctx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.RequestTimer())

	metricsHandler := handler.NewMetricsHandler(metrics, readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Routes{
		Auth:        handler.NewAuthHandler(authSvc),
		Courses:     handler.NewCourseHandler(courseSvc),
		Drafts:      handler.NewDraftHandler(draftSvc),
		Mentors:     handler.NewMentorHandler(mentorSvc, costSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		Students:    handler.NewStudentHandler(studentSvc),
		Imports:     handler.NewImportHandler(importSvc),
		Reports:     handler.NewReportHandler(reportSvc),
		Dashboard:   handler.NewDashboardHandler(dashboardSvc),
		Metrics:     metricsHandler,
		Tokens:      authSvc,
		Audit:       userRepo,
		Logger:      logr,
	}.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
