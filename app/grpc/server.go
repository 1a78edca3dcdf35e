package grpc

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/factory"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type databasePinger interface {
	PingContext(ctx context.Context) error
}

// HealthServer serves grpc.health.v1.Health. Check reports NOT_SERVING while the database is unreachable.
type HealthServer struct {
	*health.Server
	db     databasePinger
	logger logrus.FieldLogger
}

func NewHealthServer(db databasePinger) *HealthServer {
	return &HealthServer{
		Server: health.NewServer(),
		db:     db,
		logger: factory.NewModuleLogger("grpc-health"),
	}
}

func (s *HealthServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if err := s.db.PingContext(ctx); err != nil {
		loggerWithContext(ctx).WithError(err).Warn("Health check database ping failed")
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return s.Server.Check(ctx, req)
}
