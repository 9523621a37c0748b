package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/elearning/internal/config"
	"github.com/stemsi/elearning/internal/response"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports dependency health.
type HealthHandler struct {
	db        Pinger
	rdb       *redis.Client
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb, startTime: time.Now()}
}

// Health godoc
// GET /health
// 200 when PostgreSQL and Redis answer, 503 otherwise.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"postgres": "ok", "redis": "ok"}
	healthy := true
	if err := h.db.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	}
	queued, _ := h.rdb.LLen(ctx, config.WorkerKey.RoleChangedQueue).Result()

	body := gin.H{
		"status": "ok",
		"checks": checks,
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
		"queues": gin.H{config.WorkerKey.RoleChangedQueue: queued},
	}
	if !healthy {
		body["status"] = "degraded"
		body["success"] = false
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	response.Success(c, http.StatusOK, body)
}
