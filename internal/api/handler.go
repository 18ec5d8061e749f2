package api

import (
	"laundry-reservation-backend/config"
	"laundry-reservation-backend/internal/reserve"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	engine *reserve.Engine
	cfg    *config.Config
}

// NewHandler creates a new API handler.
func NewHandler(engine *reserve.Engine, cfg *config.Config) *Handler {
	return &Handler{
		engine: engine,
		cfg:    cfg,
	}
}
