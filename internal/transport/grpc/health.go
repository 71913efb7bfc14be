// Package grpc exposes the inventory health status over the standard gRPC health protocol.
package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported next to the overall ("") status.
const ServiceName = "inventory.v1.Inventory"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter keeps the gRPC health status in line with periodic store pings.
type HealthReporter struct {
	server   *health.Server
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewHealthReporter(pinger Pinger, interval, timeout time.Duration, logger *slog.Logger) *HealthReporter {
	return &HealthReporter{
		server:   health.NewServer(),
		pinger:   pinger,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With("component", "health"),
	}
}

// Register adds the health service to a gRPC server.
func (h *HealthReporter) Register(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, h.server)
}

// Check pings the store once and publishes the result.
func (h *HealthReporter) Check(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err := h.pinger.Ping(pingCtx); err != nil {
		h.logger.WarnContext(ctx, "Store ping failed", "error", err)
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
	return status
}

// Run checks the store every interval until ctx is done, then reports NOT_SERVING.
func (h *HealthReporter) Run(ctx context.Context) error {
	h.Check(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return nil
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}
