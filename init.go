package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tournevent/fulfillment/internal/config"
	"github.com/tournevent/fulfillment/internal/events"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/tournevent/fulfillment/internal/store"
	"github.com/tournevent/fulfillment/internal/telemetry"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/tournevent/fulfillment/pkg/shipper/shipstation"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// app holds what every command needs.
type app struct {
	cfg      *config.Config
	logger   *otelzap.Logger
	service  *fulfillment.Service
	registry *prometheus.Registry
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) (*otelzap.Logger, error) {
	return telemetry.NewLogger(cfg.LogLevel, cfg.ServiceName)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Attributes())
	return shutdown, err
}

func initStore(ctx context.Context, cfg *config.Config, logger *otelzap.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, orders are kept in memory")
		return store.NewMemory(), func() {}, nil
	}

	db, err := store.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	pg := store.NewPostgres(db)
	if err := pg.Migrate(ctx); err != nil {
		closeDB()
		return nil, nil, err
	}
	return pg, closeDB, nil
}

func initPublisher(ctx context.Context, cfg *config.Config, logger *otelzap.Logger) (events.Publisher, func(), error) {
	if cfg.RedisURL == "" {
		return events.Nop{}, func() {}, nil
	}

	client, err := events.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Publishing fulfillment outcomes", zap.String("channel", cfg.EventsChannel))
	return events.NewRedisPublisher(client, cfg.EventsChannel), func() { _ = client.Close() }, nil
}

func initCarrier(cfg *config.Config, logger *otelzap.Logger) (shipper.Carrier, error) {
	tracer := otel.GetTracerProvider().Tracer(cfg.ServiceName)

	return shipstation.New(shipstation.Config{
		APIKey:    cfg.ShipStationAPIKey,
		APISecret: cfg.ShipStationAPISecret,
		BaseURL:   cfg.ShipStationBaseURL,
		Timeout:   cfg.ShipStationTimeout,
		RateLimit: cfg.ShipStationRateLimit,
		TestLabel: cfg.ShipStationTestLabel,
		UseMock:   cfg.ShipStationUseMock,
	}, logger, tracer)
}

func serviceConfig(cfg *config.Config) fulfillment.Config {
	return fulfillment.Config{
		Rates: fulfillment.RateShopperConfig{
			OriginPostalCode:   cfg.ShipFromPostalCode,
			PackagingFee:       cfg.PackagingFee,
			PackageCode:        cfg.PackageCode,
			Dimensions:         shipper.DefaultDimensions,
			FallbackPostalCode: cfg.FallbackPostalCode,
			FallbackState:      cfg.FallbackState,
		},
		Orchestrator: fulfillment.OrchestratorConfig{
			ShipFrom:     cfg.ShipFrom(),
			PackageCode:  cfg.PackageCode,
			Confirmation: cfg.Confirmation,
			Dimensions:   shipper.DefaultDimensions,
			TestLabel:    cfg.ShipStationTestLabel,
		},
		Retry: fulfillment.RetryPolicy{
			MaxAttempts:     cfg.MaxAttempts,
			InitialInterval: cfg.RetryBackoff,
			MaxInterval:     cfg.RetryMaxBackoff,
		},
		BulkConcurrency: cfg.BulkConcurrency,
	}
}

// newApp loads configuration and wires the fulfillment service.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		a.closers = append(a.closers, func() { _ = tracerShutdown(context.Background()) })
	}

	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	records, closeStore, err := initStore(ctx, cfg, logger)
	if err != nil {
		return fail(fmt.Errorf("opening order store: %w", err))
	}
	a.closers = append(a.closers, closeStore)

	publisher, closePublisher, err := initPublisher(ctx, cfg, logger)
	if err != nil {
		return fail(fmt.Errorf("opening event publisher: %w", err))
	}
	a.closers = append(a.closers, closePublisher)

	carrier, err := initCarrier(cfg, logger)
	if err != nil {
		return fail(err)
	}

	accounts := shipper.DefaultRegistry(cfg.USPSCarrierCode, cfg.UPSCarrierCode)
	service, err := fulfillment.NewService(serviceConfig(cfg), carrier, accounts, records, logger,
		fulfillment.WithPublisher(publisher),
		fulfillment.WithMetrics(telemetry.NewMetrics(a.registry)),
	)
	if err != nil {
		return fail(err)
	}
	a.service = service
	return a, nil
}
