// Package main is the entry point for the PAC admin API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"pacadmin/internal/core/deleteid"
	"pacadmin/internal/docstore"
	"pacadmin/internal/docstore/memory"
	"pacadmin/internal/domain/audit"
	"pacadmin/internal/domain/auth"
	"pacadmin/internal/domain/lock"
	"pacadmin/internal/domain/pac"
	"pacadmin/internal/domain/query"
	"pacadmin/internal/domain/registry"
	"pacadmin/internal/domain/students"
	"pacadmin/internal/domain/templink"
	"pacadmin/internal/domain/version"
	fsstore "pacadmin/internal/infrastructure/firestore"
	v1 "pacadmin/internal/infrastructure/http/v1"
	"pacadmin/pkg/logger"
)

func main() {
	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting pacadmin server")

	// --- Document store ---
	var store docstore.Store
	switch backend := getEnv("STORE_BACKEND", "firestore"); backend {
	case "memory":
		store = memory.New()
		log.Warn("using in-memory store; data will not survive restarts")
	case "firestore":
		fs, err := fsstore.New(ctx, mustEnv("FIRESTORE_PROJECT_ID"), log)
		if err != nil {
			log.Fatalw("failed to connect to firestore", "error", err)
		}
		defer fs.Close()
		store = fs
		log.Info("firestore connection established")
	default:
		log.Fatalw("unknown store backend", "backend", backend)
	}

	// --- JWT Service ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	// --- Audit Service ---
	appVersion := getEnv("APP_VERSION", "0.1.0")
	auditService, err := audit.NewService(store, log, appVersion, getEnv("APP_BUILD", "0"))
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// --- Domain services ---
	authService := auth.NewService(store, log, auditService, jwtService, auth.DefaultServiceConfig())

	versionService := version.NewService(store, log, auditService, getEnv("APP_ENV", "development"))
	if err := versionService.Ensure(ctx); err != nil {
		log.Warnw("version document bootstrap failed", "error", err)
	}

	tempLinkService := templink.NewService(store, log, auditService)
	pacService := pac.NewService(store, log, auditService, deleteid.DefaultFormat())
	studentsService := students.NewService(store, log, auditService)
	queryService := query.NewService(store, log)

	// --- Reconciliation engine ---
	cfg := registry.DefaultConfig()
	cfg.DryRun = getEnv("REGISTRY_DRY_RUN", "false") == "true"
	if ratio := getEnvFloat("REGISTRY_QUARANTINE_RATIO", 0); ratio > 0 {
		cfg.QuarantineRatio = ratio
	}

	locks := lock.NewManager(store, registry.LockName, lock.DefaultTTL)
	engine := registry.New(cfg, store, locks, log, nil)

	unsubscribe, err := engine.Start(ctx)
	if err != nil {
		log.Fatalw("failed to subscribe to delete registry", "error", err)
	}
	defer unsubscribe()
	log.Infow("reconciliation engine started", "collection", cfg.Collection, "dry_run", cfg.DryRun)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Store:           store,
		Logger:          log,
		JWTValidator:    jwtService,
		AuthService:     authService,
		Engine:          engine,
		AuditService:    auditService,
		PacService:      pacService,
		VersionService:  versionService,
		TempLinkService: tempLinkService,
		StudentsService: studentsService,
		QueryService:    queryService,
		AppVersion:      appVersion,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
