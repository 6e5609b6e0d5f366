package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/sensor_provider/internal/logger"
	"github.com/LeonardoBeccarini/sensor_provider/internal/metrics"
	"github.com/LeonardoBeccarini/sensor_provider/internal/services/ingest"
	"github.com/LeonardoBeccarini/sensor_provider/internal/services/provider"
	"github.com/LeonardoBeccarini/sensor_provider/internal/store"
	"github.com/LeonardoBeccarini/sensor_provider/pkg/rabbitmq"
)

func main() {
	cfg := loadConfig()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		log = logger.GetInstance()
		log.Warn("falling back to info logging", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("sensor provider stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TokenSecret == devTokenSecret {
		log.Warn("TOKEN_SECRET not set, using the development secret")
	}

	db, err := store.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	sqlite := store.NewSQLiteStore(db)

	m := metrics.New()

	var measurements store.MeasurementStore = sqlite
	// the deferred db.Close must not run under a handler still writing
	var ingestDone sync.WaitGroup
	defer func() {
		stop()
		ingestDone.Wait()
	}()
	switch cfg.MeasurementBackend {
	case "sqlite":
	case "influx":
		client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
		defer client.Close()
		influx, err := store.NewInfluxMeasurements(client, store.InfluxConfig{
			URL:         cfg.InfluxURL,
			Token:       cfg.InfluxToken,
			Org:         cfg.InfluxOrg,
			Bucket:      cfg.InfluxBucket,
			Measurement: cfg.InfluxMeasurement,
		})
		if err != nil {
			return err
		}
		cb := store.NewCircuitBreaker(store.BreakerConfig{
			Name:     "influx",
			Failures: uint32(cfg.BreakerFailures),
			OpenFor:  cfg.BreakerOpenFor,
			Interval: cfg.BreakerInterval,
		}, m.ObserveBreaker)
		measurements = store.NewBreakerMeasurements(influx, cb)
		log.Info("measurements backed by influxdb", zap.String("url", cfg.InfluxURL), zap.String("bucket", cfg.InfluxBucket))
	default:
		return fmt.Errorf("MEASUREMENT_BACKEND must be sqlite or influx, got %q", cfg.MeasurementBackend)
	}

	if cfg.SeedExampleData {
		seedCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := store.SeedExampleProject(seedCtx, sqlite)
		if err == nil {
			err = store.SeedExampleMeasurements(seedCtx, measurements)
		}
		cancel()
		if err != nil {
			return err
		}
		log.Info("example data seeded", zap.String("project_id", store.ExampleProjectID))
	}

	if cfg.MQTTEnabled {
		client, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
			Host:     cfg.MQTTHost,
			Port:     cfg.MQTTPort,
			User:     cfg.MQTTUser,
			Password: cfg.MQTTPassword,
			ClientID: cfg.MQTTClientID,
		}, log)
		if err != nil {
			return err
		}
		consumer := rabbitmq.NewConsumer(client, 1, log, cfg.MQTTTopic)
		svc := ingest.NewService(consumer, sqlite, measurements, ingest.Config{
			StoreTimeout: cfg.StoreTimeout,
			DedupTTL:     cfg.DedupTTL,
		}, log.Named("ingest"), m)
		ingestDone.Add(1)
		go func() {
			defer ingestDone.Done()
			if err := svc.Start(ctx); err != nil {
				log.Error("mqtt ingest stopped", zap.Error(err))
			}
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	api := &provider.API{
		Config: provider.Config{
			StoreTimeout: cfg.StoreTimeout,
			MaxRange:     cfg.MaxRange,
			MaxPoints:    cfg.MaxPoints,
		},
		Projects:     sqlite,
		Sensors:      sqlite,
		Measurements: measurements,
		Tokens:       provider.NewTokenIssuer([]byte(cfg.TokenSecret), cfg.TokenIssuer, cfg.TokenTTL),
		Ready:        sqlite.Ping,
		Log:          log.Named("http"),
		Metrics:      m,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           provider.NewRouter(api),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("sensor provider listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
