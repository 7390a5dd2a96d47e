package server

import (
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported by the gRPC health service alongside the overall status.
const ServiceName = "invoice-extractor"

// HealthServer exposes grpc.health.v1 for orchestrators.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
	logger *slog.Logger
}

// NewHealthServer listens on addr and registers the health service as SERVING.
func NewHealthServer(addr string, logger *slog.Logger) (*HealthServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := grpc.NewServer()
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	// empty string means overall server health
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &HealthServer{grpc: srv, health: hs, lis: lis, logger: logger}, nil
}

func (h *HealthServer) Addr() string { return h.lis.Addr().String() }

// Serve blocks until Stop.
func (h *HealthServer) Serve() error {
	h.logger.Info("grpc.health.listening", "addr", h.Addr())
	return h.grpc.Serve(h.lis)
}

// Stop marks the service NOT_SERVING and drains connections.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
