package grpc

import (
	"context"
	"errors"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type stubPinger struct {
	err error
}

func (p *stubPinger) PingContext(context.Context) error {
	return p.err
}

func TestHealthCheckServing(t *testing.T) {
	srv := NewHealthServer(&stubPinger{})

	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}
}

func TestHealthCheckDatabaseDown(t *testing.T) {
	srv := NewHealthServer(&stubPinger{err: errors.New("connection refused")})

	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", resp.GetStatus())
	}
}
