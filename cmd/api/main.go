package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/utn-records/enrollment-api/api/swagger"
	"github.com/utn-records/enrollment-api/internal/handler"
	"github.com/utn-records/enrollment-api/internal/middleware"
	"github.com/utn-records/enrollment-api/internal/models"
	"github.com/utn-records/enrollment-api/internal/repository"
	"github.com/utn-records/enrollment-api/internal/service"
	"github.com/utn-records/enrollment-api/pkg/cache"
	"github.com/utn-records/enrollment-api/pkg/config"
	"github.com/utn-records/enrollment-api/pkg/database"
	"github.com/utn-records/enrollment-api/pkg/jobs"
	"github.com/utn-records/enrollment-api/pkg/logger"
	corsmiddleware "github.com/utn-records/enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/utn-records/enrollment-api/pkg/middleware/requestid"
	"github.com/utn-records/enrollment-api/pkg/storage"
)

// @title UTN Enrollment API
// @version 1.0.0
// @description Enrollment validation and academic records service
// @BasePath /api/v1
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	validate := validator.New()
	metricsService := service.NewMetricsService()

	// Repositories.
	studentRepo := repository.NewStudentRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	outcomeRepo := repository.NewOutcomeRepository(db)
	lockRepo := repository.NewLockRepository(db)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportJobRepository(db)

	// The eligibility cache is optional; without Redis every read goes to
	// the database.
	var cacheService *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Cache.EligibilityTTL, logr, true)
	} else {
		cacheService = service.NewCacheService(nil, nil, 0, logr, false)
	}

	// Services.
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "enrollment-api",
	})
	correlativeService := service.NewCorrelativeService(catalogRepo, outcomeRepo, enrollmentRepo, cfg.Academic.PassingGrade, logr)
	enrollmentService := service.NewEnrollmentService(
		enrollmentRepo, studentRepo, sectionRepo, catalogRepo, correlativeService, lockRepo,
		cacheService, metricsService,
		service.EnrollmentPolicy{AllowRetakes: cfg.Academic.AllowRetakes},
		repository.IsUniqueViolation, validate, logr,
	)
	gradeService := service.NewGradeService(enrollmentRepo, outcomeRepo, cacheService, metricsService, cfg.Academic.PassingGrade, validate, logr)
	catalogService := service.NewCatalogService(catalogRepo, sectionRepo, validate, logr)
	if err := catalogService.LoadProgramLinks(cfg.Programs.SlugFile); err != nil {
		logr.Sugar().Warnw("program links unavailable", "error", err)
	}
	studentService := service.NewStudentService(studentRepo, catalogRepo, validate, logr)

	// Transcript pipeline.
	var reportService *service.ReportService
	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init transcript storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reportService = service.NewReportService(reportRepo, studentRepo, store, signer, metricsService, validate, logr)
		reportQueue = jobs.NewQueue("transcripts", reportService.ProcessJob, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(context.Background())
		defer reportQueue.Stop()
		reportService.SetQueue(reportQueue)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	studentHandler := handler.NewStudentHandler(studentService)
	catalogHandler := handler.NewCatalogHandler(catalogService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	gradeHandler := handler.NewGradeHandler(gradeService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authService), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	admin := string(models.RoleAdmin)
	professor := string(models.RoleProfessor)

	students := protected.Group("/students")
	students.GET("", middleware.RBAC(admin, professor), studentHandler.List)
	students.POST("", middleware.RBAC(admin), studentHandler.Create)
	students.GET("/:id", middleware.RBAC(admin, professor, middleware.SelfParam), studentHandler.Get)
	students.PUT("/:id", middleware.RBAC(admin), studentHandler.Update)

	students.GET("/:id/eligibility", middleware.RBAC(admin, professor, middleware.SelfParam), enrollmentHandler.Eligibility)
	students.GET("/:id/outcomes", middleware.RBAC(admin, professor, middleware.SelfParam), gradeHandler.ListOutcomes)
	students.DELETE("/:id/enrollments/:sectionId",
		middleware.RBAC(admin, middleware.SelfParam),
		middleware.Audit(userRepo, models.AuditActionWithdraw, "enrollment", "sectionId"),
		enrollmentHandler.Withdraw)

	protected.GET("/programs", catalogHandler.ListPrograms)
	protected.GET("/programs/:id", catalogHandler.GetProgram)
	protected.GET("/programs/:id/subjects", catalogHandler.ListProgramSubjects)
	protected.GET("/subjects", catalogHandler.ListSubjects)
	protected.GET("/subjects/:id", catalogHandler.GetSubject)
	protected.GET("/subjects/:id/sections", catalogHandler.ListSubjectSections)
	protected.GET("/sections", catalogHandler.ListSections)
	protected.GET("/sections/:id", catalogHandler.GetSection)

	enrollments := protected.Group("/enrollments")
	enrollments.GET("", enrollmentHandler.List)
	enrollments.POST("",
		middleware.Audit(userRepo, models.AuditActionEnroll, "enrollment", ""),
		enrollmentHandler.Enroll)

	protected.POST("/grades",
		middleware.RBAC(admin, professor),
		middleware.Audit(userRepo, models.AuditActionGradeRecord, "enrollment", ""),
		gradeHandler.RecordGrade)
	protected.POST("/outcomes",
		middleware.RBAC(admin),
		middleware.Audit(userRepo, models.AuditActionOutcome, "subject_outcome", ""),
		gradeHandler.RecordOutcome)

	if reportService != nil {
		reportHandler := handler.NewReportHandler(reportService)
		reports := protected.Group("/reports")
		reports.POST("/transcripts", reportHandler.Request)
		reports.GET("/transcripts/:id", reportHandler.Status)
		reports.POST("/transcripts/:id/download-token", reportHandler.DownloadToken)
		api.GET("/reports/download", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
