package handlers

import (
	"github.com/souqline/fulfillment-service/internal/config"
	"github.com/souqline/fulfillment-service/internal/service"
)

// Handlers holds all HTTP handlers for the fulfillment service.
type Handlers struct {
	engine   *service.AuthEngine
	pipeline *service.ScanPipeline
	config   *config.Config
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	engine *service.AuthEngine,
	pipeline *service.ScanPipeline,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		engine:   engine,
		pipeline: pipeline,
		config:   cfg,
	}
}
