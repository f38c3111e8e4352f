package grpc

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

const checkTimeout = 2 * time.Second

// Pinger is any dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheckService answers grpc.health.v1 checks by pinging the cart
// store, the cache and the catalog. The empty service name checks all of
// them; a dependency name checks just that one.
type HealthCheckService struct {
	healthpb.UnimplementedHealthServer
	deps map[string]Pinger
	log  *zap.Logger
}

func NewHealthCheckService(deps map[string]Pinger, log *zap.Logger) *HealthCheckService {
	return &HealthCheckService{deps: deps, log: log}
}

func (h *HealthCheckService) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if name := req.GetService(); name != "" {
		dep, ok := h.deps[name]
		if !ok {
			return nil, status.Errorf(codes.NotFound, "unknown service %q", name)
		}
		return h.respond(h.ping(ctx, name, dep)), nil
	}

	serving := true
	for name, dep := range h.deps {
		if !h.ping(ctx, name, dep) {
			serving = false
		}
	}
	return h.respond(serving), nil
}

func (h *HealthCheckService) ping(ctx context.Context, name string, dep Pinger) bool {
	if err := dep.Ping(ctx); err != nil {
		h.log.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
		return false
	}
	return true
}

func (h *HealthCheckService) respond(serving bool) *healthpb.HealthCheckResponse {
	if serving {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}
}

// NewServer builds the traced gRPC server with health and reflection
// registered.
func NewServer(health *HealthCheckService) *grpc.Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthpb.RegisterHealthServer(srv, health)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(srv)
	return srv
}
