// Package app wires the inventory service: store, event publishing, engines and servers.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/inventory/internal/config"
	"github.com/abgdnv/inventory/internal/service"
	"github.com/abgdnv/inventory/internal/store"
	grpctransport "github.com/abgdnv/inventory/internal/transport/grpc"
	"github.com/abgdnv/inventory/internal/transport/rest"
	"github.com/abgdnv/inventory/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/inventory/pkg/config"
	"github.com/abgdnv/inventory/pkg/kafka"
	"github.com/abgdnv/inventory/pkg/messaging"
	pkgnats "github.com/abgdnv/inventory/pkg/nats"
	"github.com/abgdnv/inventory/pkg/resilience"
	"github.com/abgdnv/inventory/pkg/server"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
)

type Dependencies struct {
	Store    store.Store
	Products service.ProductService
	Sales    service.SaleService
	Events   *messaging.AsyncPublisher
	Health   *grpctransport.HealthReporter
	Logger   *slog.Logger
}

// SetupStore opens the configured store. The returned func releases it.
func SetupStore(ctx context.Context, cfg pkgconfig.DatabaseConfig, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.Driver == pkgconfig.DriverMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}

	if cfg.Migrate {
		if err := store.Migrate(cfg.URL); err != nil {
			return nil, nil, err
		}
		logger.Info("Database migrations applied")
	}
	dbPool, err := bootstrap.NewDbPool(ctx, cfg.URL, cfg.Timeout)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Successfully connected to the database!")
	return store.NewPgStore(dbPool), dbPool.Close, nil
}

// SetupPublisher connects the configured broker and guards it with a circuit breaker.
// The returned func closes the broker connection.
func SetupPublisher(ctx context.Context, cfg pkgconfig.EventsConfig, logger *slog.Logger) (messaging.Publisher, func(), error) {
	switch cfg.Broker {
	case pkgconfig.BrokerNATS:
		nc, err := pkgnats.NewClient(cfg.NATS.Url, cfg.NATS.Timeout)
		if err != nil {
			return nil, nil, err
		}
		js, err := pkgnats.NewJetStreamContext(nc)
		if err != nil {
			return nil, nil, err
		}
		if err := pkgnats.EnsureStream(ctx, js, cfg.NATS.Stream, messaging.SalesSubjects); err != nil {
			nc.Close()
			return nil, nil, err
		}
		logger.Info("Publishing sale events to NATS", "stream", cfg.NATS.Stream)
		closer := func() {
			if err := nc.Drain(); err != nil {
				logger.Error("Failed to drain NATS connection", "error", err)
			}
		}
		return resilience.NewBreakerPublisher("nats", pkgnats.NewNatsPublisher(js), cfg.CircuitBreaker, logger), closer, nil

	case pkgconfig.BrokerKafka:
		publisher := kafka.NewKafkaPublisher(kafka.NewWriter(cfg.Kafka.BrokerList(), cfg.Kafka.WriteTimeout))
		logger.Info("Publishing sale events to Kafka", "brokers", cfg.Kafka.Brokers)
		closer := func() {
			if err := publisher.Close(); err != nil {
				logger.Error("Failed to close Kafka writer", "error", err)
			}
		}
		return resilience.NewBreakerPublisher("kafka", publisher, cfg.CircuitBreaker, logger), closer, nil

	case pkgconfig.BrokerNone:
		return messaging.NewLogPublisher(logger), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported events broker: %s", cfg.Broker)
}

func SetupDependencies(st store.Store, publisher messaging.Publisher, cfg *config.Config, logger *slog.Logger) *Dependencies {
	events := messaging.NewAsyncPublisher(publisher, cfg.Events.Buffer, cfg.Events.Workers, cfg.Events.DrainTimeout, logger)
	return &Dependencies{
		Store:    st,
		Products: service.NewProductManager(st),
		Sales:    service.NewSaleManager(st, events, service.WithStrictUpdateStock(cfg.Sales.StrictUpdateStock)),
		Events:   events,
		Health:   grpctransport.NewHealthReporter(st, cfg.Health.Interval, cfg.Health.Timeout, logger),
		Logger:   logger,
	}
}

// SetupHttpHandler builds the router with the API routes and the metrics endpoint.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	handler := rest.NewHandler(deps.Products, deps.Sales, deps.Store, deps.Logger)
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())
}

// SetupHttpServer creates and configures the HTTP server.
func SetupHttpServer(deps *Dependencies, cfg *config.Config, serviceName string) *http.Server {
	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}
	return server.NewHTTPServer(httpCfg, serviceName, SetupHttpHandler(deps))
}

// SetupGrpcServer creates the gRPC server carrying the health service.
func SetupGrpcServer(deps *Dependencies, cfg *config.Config) *grpc.Server {
	return server.NewGRPCServer(deps.Logger, cfg.GRPC.ReflectionEnabled, deps.Health.Register)
}
