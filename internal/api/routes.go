package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"qrintake/internal/admission"
	"qrintake/internal/api/middleware"
	"qrintake/internal/auth"
	"qrintake/internal/config"
	"qrintake/internal/geofence"
	"qrintake/internal/intake"
	"qrintake/internal/notify"
	"qrintake/internal/qrcode"
	"qrintake/internal/submission"
)

// Deps are the process-wide clients the handlers are built from.
// Tasks and Scanner may be nil.
type Deps struct {
	Config  *config.Config
	DB      *gorm.DB
	Redis   redis.UniversalClient
	Tasks   TaskEnqueuer
	Auth    *auth.AuthService
	Storage ObjectStorage
	Scanner VirusScanner
	Logger  *slog.Logger
}

// RegisterRoutes mounts the versioned API under /v1.
func RegisterRoutes(router *gin.Engine, deps Deps) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	directory := qrcode.NewDirectory(deps.DB)
	policy := geofence.NewPolicy(deps.DB)
	evaluator := admission.NewEvaluator(directory, policy)
	submissions := submission.NewStore(deps.DB)
	notifications := notify.NewService(deps.DB, deps.Redis, logger)

	intakeDeps := intake.Deps{
		Codes:       directory,
		Submissions: submissions,
		Notifier:    notifications,
		Files:       resumeStore{storage: deps.Storage},
		Logger:      logger,
	}
	if cfg.Intake.EnforceGeofence {
		intakeDeps.Gate = evaluator
	}
	intakeService := intake.NewService(intakeDeps, cfg.Intake.ApplicationTypes)
	filter := newResumeFilter(cfg.Upload.MaxResumeBytes, cfg.Upload.AllowedMIME, deps.Scanner)

	qrHandler := NewQRCodeHandler(directory, deps.Tasks, deps.Storage, cfg.API.PublicBaseURL)
	admissionHandler := NewAdmissionHandler(evaluator)
	formHandler := NewFormHandler(intakeService, filter)
	locationHandler := NewLocationHandler(policy)
	submissionHandler := NewSubmissionHandler(submissions, deps.Storage)
	notificationHandler := NewNotificationHandler(notifications)
	authHandler := NewAuthHandler(deps.DB, deps.Auth, deps.Redis)
	wsHandler := NewWsHandler(deps.Redis, deps.Auth, logger)

	authMiddleware := middleware.AuthMiddleware(deps.Auth)
	perMinute := cfg.RateLimit.PublicPerMinute

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authHandler.Logout)
		}

		v1.GET("/qrcodes/code/:code", qrHandler.GetByCode)
		v1.POST("/qrcodes/validate/:code",
			middleware.PublicRateLimitWithBody(deps.Redis, "validate", perMinute, gin.H{
				"message":     "rate limit exceeded",
				"withinRange": false,
			}),
			admissionHandler.Validate,
		)
		v1.POST("/form/:code/submit",
			middleware.PublicRateLimit(deps.Redis, "submit", perMinute),
			formHandler.Submit,
		)

		qrGroup := v1.Group("/qrcodes")
		qrGroup.Use(authMiddleware)
		{
			qrGroup.POST("", qrHandler.Create)
			qrGroup.GET("", qrHandler.List)
			qrGroup.GET("/:id/image", qrHandler.ImageURL)
			qrGroup.DELETE("/:id", qrHandler.Delete)
		}

		locationGroup := v1.Group("/locations")
		locationGroup.Use(authMiddleware)
		{
			locationGroup.GET("", locationHandler.Get)
			locationGroup.PUT("", locationHandler.Put)
			locationGroup.DELETE("", locationHandler.Delete)
		}

		submissionGroup := v1.Group("/submissions")
		submissionGroup.Use(authMiddleware)
		{
			submissionGroup.GET("", submissionHandler.List)
			submissionGroup.GET("/:id", submissionHandler.Get)
			submissionGroup.PATCH("/:id", submissionHandler.Review)
			submissionGroup.GET("/:id/resume", submissionHandler.ResumeURL)
		}

		notificationGroup := v1.Group("/notifications")
		notificationGroup.Use(authMiddleware)
		{
			notificationGroup.GET("", notificationHandler.List)
			notificationGroup.POST("/:id/read", notificationHandler.MarkRead)
		}
	}
}
