// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pacadmin/internal/docstore"
	"pacadmin/internal/domain/auth"
	"pacadmin/internal/domain/pac"
	"pacadmin/internal/domain/registry"
	"pacadmin/internal/domain/students"
	"pacadmin/internal/domain/templink"
)

// storageLimitMB is the plan quota the usage estimate is reported against.
const storageLimitMB = 1024

// storageWeightsKB estimates the average document size per collection.
var storageWeightsKB = map[string]float64{
	pac.Collection:        3.0,
	pac.ArchiveCollection: 2.5,
	auth.Collection:       2.0,
	students.Collection:   3.5,
	templink.Collection:   1.5,
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	store     docstore.Store
	engine    *registry.Engine
	version   string
	startedAt time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store docstore.Store, engine *registry.Engine, version string) *HealthHandler {
	return &HealthHandler{
		store:     store,
		engine:    engine,
		version:   version,
		startedAt: time.Now(),
	}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	// A cheap read proves the document store collaborator answers.
	if _, err := h.store.List(c.Request.Context(), registry.Collection); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"docstore": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"docstore": "healthy",
		},
	})
}

// Info returns application information: version, uptime since process
// start, registry stats and the estimated storage usage.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	stats := h.engine.Stats()
	c.JSON(http.StatusOK, gin.H{
		"app":            "pacadmin",
		"version":        h.version,
		"started_at":     h.startedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"registry": map[string]any{
			"total":            stats.Total,
			"duplicate_groups": stats.DuplicateGroups,
			"health":           stats.Health,
			"quarantined":      stats.Quarantined,
		},
		"storage": h.estimateStorage(c.Request.Context()),
	})
}

// estimateStorage sizes each collection by document count times a weighted
// average size. Collections that fail to list are skipped rather than
// failing the info endpoint.
func (h *HealthHandler) estimateStorage(ctx context.Context) map[string]any {
	var totalKB float64
	counts := make(map[string]int, len(storageWeightsKB))
	for collection, weightKB := range storageWeightsKB {
		docs, err := h.store.List(ctx, collection)
		if err != nil {
			continue
		}
		counts[collection] = len(docs)
		totalKB += float64(len(docs)) * weightKB
	}

	usedMB := totalKB / 1024
	percent := usedMB / storageLimitMB * 100

	status := "OK"
	switch {
	case percent >= 80:
		status = "CRITICAL"
	case percent >= 60:
		status = "WARNING"
	}

	return map[string]any{
		"used_mb":      usedMB,
		"limit_mb":     storageLimitMB,
		"used_percent": percent,
		"status":       status,
		"counts":       counts,
	}
}
