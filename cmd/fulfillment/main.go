package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/souqline/fulfillment-service/internal/clients"
	"github.com/souqline/fulfillment-service/internal/config"
	"github.com/souqline/fulfillment-service/internal/events"
	"github.com/souqline/fulfillment-service/internal/handlers"
	"github.com/souqline/fulfillment-service/internal/optical"
	"github.com/souqline/fulfillment-service/internal/repository"
	"github.com/souqline/fulfillment-service/internal/server"
	"github.com/souqline/fulfillment-service/internal/service"

	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	setupLogger()
	slog.Info("Starting fulfillment-service", "port", cfg.Server.Port)

	db, err := initDatabase(cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ledger := repository.NewPostgresLedger(db)
	orderCache := repository.NewRedisOrderCache(cfg.Redis)

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Features.EnableOrderEvents {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	verdictClient := clients.NewHTTPVerdictClient(cfg.VerdictService)

	engine := service.NewAuthEngine(ledger, orderCache, publisher, cfg)
	pipeline := service.NewScanPipeline(optical.NewDecoder(), verdictClient, engine)

	h := handlers.NewHandlers(engine, pipeline, cfg)
	srv := server.New(h, cfg)

	go func() {
		slog.Info("Server starting",
			"port", cfg.Server.Port,
			"enable_order_events", cfg.Features.EnableOrderEvents,
			"enable_order_caching", cfg.Features.EnableOrderCaching)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

func setupLogger() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(handler))
}

func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	slog.Info("Database connected", "host", cfg.Database.Host, "name", cfg.Database.Name)
	return db, nil
}
