package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"laundry-reservation-backend/config"
	"laundry-reservation-backend/internal/mw"
	"laundry-reservation-backend/internal/reserve"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(engine *reserve.Engine, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(engine, cfg)

	rateLimiter := mw.RateLimiter(
		rate.Limit(cfg.Server.RateLimitPerSec),
		cfg.Server.RateLimitBurst,
		cfg.Server.RequestIPHeader,
	)

	// Caching the machine list delays the cleanup pass by at most the TTL,
	// so it stays short and is disabled when cache_ttl_seconds is 0.
	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 10*time.Minute)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/machines", caching, handler.ListMachines)
		api.GET("/machines/:id", handler.GetMachine)

		api.POST("/machines/:id/start", handler.StartMachine)
		api.POST("/machines/:id/subscribe", handler.Subscribe)
		api.POST("/machines/:id/unsubscribe", handler.Unsubscribe)

		api.POST("/test-email", handler.TestEmail)
	}

	return r
}
