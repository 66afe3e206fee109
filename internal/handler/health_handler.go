package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// sqlDB 只需要 Ping
type sqlDB interface {
	PingContext(ctx context.Context) error
}

// pinger kafka 未开启时为 nil
type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db           sqlDB
	redis        *redis.Client
	kafka        pinger
	checkTimeout time.Duration
}

func NewHealthHandler(db sqlDB, redisClient *redis.Client, kafka pinger) *HealthHandler {
	return &HealthHandler{
		db:           db,
		redis:        redisClient,
		kafka:        kafka,
		checkTimeout: 2 * time.Second,
	}
}

// Healthz 进程存活
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz 依赖是否可用
func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.checkTimeout)
	defer cancel()

	checks := map[string]string{}
	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
	}
	if h.kafka != nil {
		if err := h.kafka.Ping(ctx); err != nil {
			checks["kafka"] = err.Error()
		}
	}

	if len(checks) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "fail", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
