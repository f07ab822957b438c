package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"battery-log-api/config"
	"battery-log-api/db"
	"battery-log-api/logging"
	"battery-log-api/metrics"
	"battery-log-api/mirror"
	"battery-log-api/render"
	"battery-log-api/rest"
	"battery-log-api/telemetry"

	"go.uber.org/zap"
)

const (
	schemaTimeout   = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	provider := db.NewProvider(cfg.Store())
	defer provider.Close()

	if err := provider.Err(); err != nil {
		logger.Error("database not usable, requests touching the store will fail",
			zap.String("driver", provider.Driver()),
			zap.Error(err),
		)
	} else {
		logger.Info("database configured",
			zap.String("driver", provider.Driver()),
			zap.String("location", cfg.Redacted()),
		)
	}

	registry := metrics.NewRegistry()

	var recordMirror telemetry.Mirror
	if cfg.Influx.Enabled() {
		influx := mirror.NewInflux(mirror.InfluxConfig{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		})
		defer influx.Close()
		recordMirror = influx
		logger.Info("mirroring records to InfluxDB", zap.String("url", cfg.Influx.URL), zap.String("bucket", cfg.Influx.Bucket))
	}

	auth := telemetry.NewAuthenticator(cfg.Auth.APIKey)
	if !auth.Configured() {
		logger.Warn("API_KEY_SECRET is not set, endpoints requiring a key will reject every request")
	}

	service := telemetry.NewService(telemetry.Options{
		Provider: provider,
		Schema:   db.NewSchema(provider, db.Streams()),
		Streams:  cfg.Streams(),
		Auth:     auth,
		Mirror:   recordMirror,
		Metrics:  metrics.New(registry),
		Logger:   logger,
	})

	schemaCtx, cancel := context.WithTimeout(ctx, schemaTimeout)
	if err := service.EnsureSchema(schemaCtx); err != nil {
		logger.Error("Failed to initialize schema, will retry on the next request", zap.Error(err))
	} else {
		logger.Info("schema verified", zap.Int("tables", len(db.Streams())))
	}
	cancel()

	loc, err := time.LoadLocation(cfg.Render.Timezone)
	if err != nil {
		logger.Warn("unknown render timezone, using UTC", zap.String("timezone", cfg.Render.Timezone), zap.Error(err))
		loc = time.UTC
	}

	app, err := rest.NewApp(rest.Options{
		Config:   cfg,
		Service:  service,
		Renderer: render.New(loc),
		Gatherer: registry,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Failed to build HTTP app", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", cfg.ListenAddress()))
		errCh <- app.Listen(cfg.ListenAddress())
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}
}
