// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"pacadmin/internal/docstore"
	"pacadmin/internal/domain/audit"
	"pacadmin/internal/domain/auth"
	"pacadmin/internal/domain/pac"
	"pacadmin/internal/domain/query"
	"pacadmin/internal/domain/registry"
	"pacadmin/internal/domain/students"
	"pacadmin/internal/domain/templink"
	"pacadmin/internal/domain/version"
	"pacadmin/internal/infrastructure/http/v1/handlers"
	"pacadmin/internal/infrastructure/http/v1/middleware"
	"pacadmin/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Store is the document-store collaborator, used for health checks
	Store docstore.Store

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// AuthService for authentication endpoints
	AuthService *auth.Service

	// Engine is the delete-ID reconciliation engine
	Engine *registry.Engine

	// Domain services
	AuditService    *audit.Service
	PacService      *pac.Service
	VersionService  *version.Service
	TempLinkService *templink.Service
	StudentsService *students.Service
	QueryService    *query.Service

	// AppVersion reported by /health/info
	AppVersion string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	base := handlers.NewBaseHandler()

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Store, cfg.Engine, cfg.AppVersion)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(base, cfg.AuthService)
		v1.POST("/auth/login", authHandler.Login)

		// Link visitors hold a token, not a session.
		tempLinkHandler := handlers.NewTempLinkHandler(base, cfg.TempLinkService)
		v1.POST("/temp-links/:token/access", tempLinkHandler.Access)
		v1.POST("/temp-links/:token/heartbeat", tempLinkHandler.Heartbeat)

		// Protected endpoints
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		// Account management is restricted to superadmins.
		protected.POST("/auth/register", middleware.RequireRole("superadmin"), authHandler.Register)

		registryHandler := handlers.NewRegistryHandler(base, cfg.Engine)
		reg := protected.Group("/registry")
		{
			reg.GET("/status", registryHandler.Status)
			reg.GET("/duplicates", registryHandler.Duplicates)
			reg.GET("/issues", registryHandler.Issues)
			reg.GET("/queue", registryHandler.Queue)
			reg.POST("/fix", registryHandler.FixAll)
			reg.POST("/duplicates/:deleteViewId/fix", registryHandler.FixGroup)
			reg.POST("/records/:docId/fix", registryHandler.FixRecord)
			reg.POST("/rollback", registryHandler.Rollback)
		}

		pacHandler := handlers.NewPacHandler(base, cfg.PacService)
		pacGroup := protected.Group("/pac")
		{
			pacGroup.GET("", pacHandler.List)
			pacGroup.GET("/last-copied", pacHandler.LastCopied)
			pacGroup.GET("/:docId", pacHandler.Get)
			pacGroup.POST("/:docId/amount", pacHandler.EditAmount)
			pacGroup.POST("/:docId/archive", pacHandler.Archive)
		}

		studentsHandler := handlers.NewStudentsHandler(base, cfg.StudentsService)
		studentsGroup := protected.Group("/students")
		{
			studentsGroup.GET("", studentsHandler.List)
			studentsGroup.GET("/uid-preview", studentsHandler.PreviewUIDs)
			studentsGroup.GET("/trash", studentsHandler.ListTrash)
			studentsGroup.GET("/:docId", studentsHandler.Get)
			studentsGroup.POST("/generate-uids", studentsHandler.GenerateUIDs)
			studentsGroup.POST("/normalize-dob", studentsHandler.NormalizeDOBs)
			studentsGroup.POST("/:docId/trash", studentsHandler.Trash)
			studentsGroup.POST("/:docId/restore", studentsHandler.Restore)
		}

		queryHandler := handlers.NewQueryHandler(base, cfg.QueryService)
		protected.GET("/query", queryHandler.Search)

		auditHandler := handlers.NewAuditHandler(base, cfg.AuditService)
		protected.GET("/audit", auditHandler.History)

		versionHandler := handlers.NewVersionHandler(base, cfg.VersionService)
		ver := protected.Group("/version")
		{
			ver.GET("", versionHandler.Current)
			ver.POST("/publish", versionHandler.Publish)
			ver.GET("/history", versionHandler.History)
			ver.POST("/history/:id/restore", versionHandler.Restore)
			ver.DELETE("/history/:id", versionHandler.DeleteHistory)
		}

		links := protected.Group("/temp-links")
		{
			links.GET("", tempLinkHandler.List)
			links.POST("", tempLinkHandler.Create)
			links.POST("/:token/revoke", tempLinkHandler.Revoke)
		}
	}

	return router
}
