package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/policyforge/policyforge-api/api/swagger"
	"github.com/policyforge/policyforge-api/internal/handler"
	"github.com/policyforge/policyforge-api/internal/middleware"
	"github.com/policyforge/policyforge-api/internal/models"
	"github.com/policyforge/policyforge-api/internal/repository"
	"github.com/policyforge/policyforge-api/internal/service"
	"github.com/policyforge/policyforge-api/pkg/cache"
	"github.com/policyforge/policyforge-api/pkg/config"
	"github.com/policyforge/policyforge-api/pkg/database"
	"github.com/policyforge/policyforge-api/pkg/export"
	"github.com/policyforge/policyforge-api/pkg/logger"
	"github.com/policyforge/policyforge-api/pkg/mailer"
	corsmiddleware "github.com/policyforge/policyforge-api/pkg/middleware/cors"
	reqidmiddleware "github.com/policyforge/policyforge-api/pkg/middleware/requestid"
)

// @title PolicyForge API
// @version 1.0.0
// @description Policy document generation, versioning and approval workflow service
// @BasePath /v1
// @schemes http

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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The summary cache is an optimization; the API runs without it.
		logr.Sugar().Warnw("redis unavailable, summary caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	dispatcher := mailer.NewDispatcher(mailer.NewSMTPSender(cfg.Mail), cfg.Mail, logr)
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	metricsService := service.NewMetricsService()

	docRepo := repository.NewDocumentRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	ownerRepo := repository.NewOwnerRepository(db)
	userRepo := repository.NewUserRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	summaryCache := repository.NewSummaryCache(redisClient, cfg.Summary.CacheTTL)

	authService := service.NewAuthService(service.AuthConfig{TokenSecret: cfg.Auth.TokenSecret}, nil, logr)
	documentService := service.NewDocumentService(docRepo, export.NewPDFExporter(), metricsService, nil, logr)
	approvalService := service.NewApprovalService(approvalRepo, docRepo, ownerRepo, userRepo, summaryCache, dispatcher, metricsService, nil, logr)
	ownerService := service.NewOwnerService(ownerRepo, docRepo, userRepo, nil, logr)
	commentService := service.NewCommentService(commentRepo, docRepo, nil, logr)
	notificationService := service.NewNotificationService(notificationRepo, logr)
	userService := service.NewUserService(userRepo, nil, logr)
	assessmentService := service.NewAssessmentService(assessmentRepo, docRepo, export.NewCSVExporter(), nil, logr)

	documentHandler := handler.NewDocumentHandler(documentService)
	approvalHandler := handler.NewApprovalHandler(approvalService)
	ownerHandler := handler.NewOwnerHandler(ownerService)
	commentHandler := handler.NewCommentHandler(commentService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	userHandler := handler.NewUserHandler(userService)
	frameworkHandler := handler.NewFrameworkHandler(assessmentService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Auth(authService))
	{
		api.GET("/templates", documentHandler.ListTemplates)

		api.POST("/documents", documentHandler.Create)
		api.GET("/documents", documentHandler.List)
		api.GET("/documents/:id", documentHandler.Get)
		api.PATCH("/documents/:id", documentHandler.Update)
		api.DELETE("/documents/:id", documentHandler.Delete)

		api.GET("/documents/:id/versions", documentHandler.ListVersions)
		api.POST("/documents/:id/versions", documentHandler.AddVersion)
		api.GET("/documents/:id/versions/:version", documentHandler.GetVersion)
		api.DELETE("/documents/:id/versions/:version", documentHandler.DeleteVersion)
		api.POST("/documents/:id/versions/:version/rollback", documentHandler.Rollback)
		api.GET("/documents/:id/versions/:version/pdf", documentHandler.ExportPDF)

		api.GET("/documents/:id/owners", ownerHandler.List)
		api.POST("/documents/:id/owners", ownerHandler.Set)
		api.DELETE("/documents/:id/owners/:ownerId", ownerHandler.Remove)

		api.GET("/documents/:id/comments", commentHandler.List)
		api.POST("/documents/:id/comments", commentHandler.Create)

		api.POST("/documents/:id/approvals", approvalHandler.Request)
		api.GET("/documents/:id/approvals", approvalHandler.List)
		api.POST("/documents/:id/approvals/:approvalId/decide", approvalHandler.Decide)
		api.GET("/approvals/summary", approvalHandler.Summary)

		api.GET("/notifications", notificationHandler.List)
		api.POST("/notifications/read", notificationHandler.MarkRead)

		api.GET("/users", userHandler.List)
		api.GET("/users/:id", userHandler.Get)
		directoryAdmin := middleware.RequireRoles(models.RoleAdmin, models.RoleOwner)
		api.POST("/users", directoryAdmin, userHandler.Create)
		api.PATCH("/users/:id", directoryAdmin, userHandler.Update)
		api.DELETE("/users/:id", directoryAdmin, userHandler.Delete)

		api.GET("/frameworks", frameworkHandler.List)
		api.GET("/frameworks/:key", frameworkHandler.Get)
		api.GET("/frameworks/:key/controls", frameworkHandler.ListControls)
		api.GET("/frameworks/:key/export", frameworkHandler.ExportCSV)
		api.PUT("/frameworks/:key/assessments", frameworkHandler.BulkUpsert)
		api.PUT("/frameworks/:key/controls/:controlId/assessment", frameworkHandler.UpsertAssessment)
		api.GET("/frameworks/:key/controls/:controlId/links", frameworkHandler.ListLinks)
		api.POST("/frameworks/:key/controls/:controlId/links", frameworkHandler.CreateLink)
		api.DELETE("/frameworks/:key/controls/:controlId/links/:linkId", frameworkHandler.DeleteLink)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
