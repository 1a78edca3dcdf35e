//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"

	authpb "github.com/vibast-solutions/ms-go-auth/app/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	defaultWebhooksCallerAPIKey   = "webhooks-admin-key"
	defaultWebhooksNoAccessAPIKey = "webhooks-no-access-key"
	defaultWebhooksAppAPIKey      = "webhooks-app-api-key"
	webhooksAuthMockAddr          = "0.0.0.0:38086"
)

func webhooksCallerAPIKey() string {
	if value := strings.TrimSpace(os.Getenv("WEBHOOKS_CALLER_API_KEY")); value != "" {
		return value
	}
	return defaultWebhooksCallerAPIKey
}

func webhooksNoAccessAPIKey() string {
	if value := strings.TrimSpace(os.Getenv("WEBHOOKS_NO_ACCESS_API_KEY")); value != "" {
		return value
	}
	return defaultWebhooksNoAccessAPIKey
}

func webhooksAppAPIKey() string {
	if value := strings.TrimSpace(os.Getenv("WEBHOOKS_APP_API_KEY")); value != "" {
		return value
	}
	return defaultWebhooksAppAPIKey
}

type webhooksAuthGRPCServer struct {
	authpb.UnimplementedAuthServiceServer
}

func (s *webhooksAuthGRPCServer) ValidateInternalAccess(ctx context.Context, req *authpb.ValidateInternalAccessRequest) (*authpb.ValidateInternalAccessResponse, error) {
	if incomingAppAPIKey(ctx) != webhooksAppAPIKey() {
		return nil, status.Error(codes.Unauthenticated, "unauthorized caller")
	}

	apiKey := strings.TrimSpace(req.GetApiKey())
	switch apiKey {
	case webhooksCallerAPIKey():
		return &authpb.ValidateInternalAccessResponse{
			ServiceName:   "studio-backoffice",
			AllowedAccess: []string{"payment-webhooks-service", "bookings-service"},
		}, nil
	case webhooksNoAccessAPIKey():
		return &authpb.ValidateInternalAccessResponse{
			ServiceName:   "studio-backoffice",
			AllowedAccess: []string{"bookings-service"},
		}, nil
	default:
		return nil, status.Error(codes.Unauthenticated, "invalid api key")
	}
}

func incomingAppAPIKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("x-api-key")
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func TestMain(m *testing.M) {
	if os.Getenv("WEBHOOKS_CALLER_API_KEY") == "" {
		_ = os.Setenv("WEBHOOKS_CALLER_API_KEY", defaultWebhooksCallerAPIKey)
	}
	if os.Getenv("WEBHOOKS_NO_ACCESS_API_KEY") == "" {
		_ = os.Setenv("WEBHOOKS_NO_ACCESS_API_KEY", defaultWebhooksNoAccessAPIKey)
	}
	if os.Getenv("WEBHOOKS_APP_API_KEY") == "" {
		_ = os.Setenv("WEBHOOKS_APP_API_KEY", defaultWebhooksAppAPIKey)
	}

	listener, err := net.Listen("tcp", webhooksAuthMockAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start auth grpc mock: %v\n", err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer()
	authpb.RegisterAuthServiceServer(grpcServer, &webhooksAuthGRPCServer{})

	go func() {
		_ = grpcServer.Serve(listener)
	}()

	exitCode := m.Run()

	grpcServer.GracefulStop()
	_ = listener.Close()

	os.Exit(exitCode)
}
