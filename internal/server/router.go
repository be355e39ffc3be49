package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tekvare/erp-ai-worker/internal/clients/redis"
	"github.com/tekvare/erp-ai-worker/internal/logger"
	"github.com/tekvare/erp-ai-worker/internal/repos"
)

// DBPinger is the database liveness check used by /healthz.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig wires the internal ops endpoints. This is not a user-facing
// surface; it exists so deployments can check the worker and watch the queue.
type RouterConfig struct {
	Log          *logger.Logger
	DB           DBPinger
	Cache        redis.Cache
	Requests     repos.ChatRequestRepo
	LockOwner    string
	ProcessorTag string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := cfg.DB.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "postgres": err.Error()})
			return
		}
		if cfg.Cache != nil {
			if err := cfg.Cache.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "redis": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/status", func(c *gin.Context) {
		counts, err := cfg.Requests.CountByStatus(c.Request.Context(), nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"lock_owner":    cfg.LockOwner,
			"processor_tag": cfg.ProcessorTag,
			"queue":         counts,
		})
	})

	return router
}
