package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/souqline/fulfillment-service/internal/config"
	"github.com/souqline/fulfillment-service/internal/handlers"
)

type Server struct {
	httpServer *http.Server
}

func New(h *handlers.Handlers, cfg *config.Config) *Server {
	router := gin.Default()

	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/live", h.Live)
	router.GET("/version", h.Version)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/orders", h.ListVendorOrders)
		v1.GET("/orders/:id", h.GetOrder)
		v1.GET("/orders/:id/qr", h.OrderQRImage)
		v1.POST("/orders/:id/accept", h.AcceptOrder)
		v1.POST("/orders/:id/reject", h.RejectOrder)
		v1.POST("/orders/:id/complete", h.CompleteOrder)
		v1.POST("/scan", h.Scan)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
