package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/database"
	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/util"
	"go.uber.org/zap"
)

// Health reports whether the database and, when configured, redis answer.
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if err := database.Health(ctx, h.db); err != nil {
		logger.Log.Warn("Health check: database unreachable", zap.Error(err))
		checks["database"] = "down"
		healthy = false
	} else {
		checks["database"] = "up"
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			logger.Log.Warn("Health check: redis unreachable", zap.Error(err))
			checks["redis"] = "down"
			healthy = false
		} else {
			checks["redis"] = "up"
		}
	}

	status := http.StatusOK
	msg := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		msg = "degraded"
	}
	util.Respond(c, status, gin.H{
		"status":    msg,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	}, msg)
}
