package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func TestLoadRequiresMySQLDSN(t *testing.T) {
	unsetEnv(t, "MYSQL_DSN")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing MYSQL_DSN")
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/studio?parseTime=true")
	unsetEnv(t, "SQUARE_WEBHOOK_SIGNATURE_KEY")
	unsetEnv(t, "SQUARE_ACCESS_TOKEN")
	unsetEnv(t, "REDIS_ADDR")
	unsetEnv(t, "RABBITMQ_URL")
	unsetEnv(t, "WEBHOOKS_PROCESSING_LEASE_SECONDS")
	unsetEnv(t, "OUTBOX_MAX_ATTEMPTS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Square.WebhookSignatureKey != "" {
		t.Fatalf("expected empty signature key by default, got %q", cfg.Square.WebhookSignatureKey)
	}
	if cfg.Square.APIBaseURL != "https://connect.squareup.com" {
		t.Fatalf("unexpected square base url: %s", cfg.Square.APIBaseURL)
	}
	if cfg.Webhooks.ProcessingLease != 2*time.Minute {
		t.Fatalf("unexpected processing lease: %v", cfg.Webhooks.ProcessingLease)
	}
	if cfg.Outbox.MaxAttempts != 10 {
		t.Fatalf("unexpected outbox max attempts: %d", cfg.Outbox.MaxAttempts)
	}
	if cfg.RabbitMQ.NotificationsExchange != "notifications" {
		t.Fatalf("unexpected notifications exchange: %s", cfg.RabbitMQ.NotificationsExchange)
	}
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/studio?parseTime=true")
	setEnv(t, "APP_SERVICE_NAME", "webhooks-test")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "GRPC_PORT", "9191")
	setEnv(t, "MYSQL_MAX_OPEN_CONNS", "20")
	setEnv(t, "MYSQL_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "SQUARE_WEBHOOK_SIGNATURE_KEY", "sig-key")
	setEnv(t, "SQUARE_HTTP_TIMEOUT_SECONDS", "3")
	setEnv(t, "WEBHOOKS_PROCESSING_LEASE_SECONDS", "45")
	setEnv(t, "REDIS_DB", "2")
	setEnv(t, "ORDER_CACHE_TTL_MINUTES", "9")
	setEnv(t, "OUTBOX_MAX_ATTEMPTS", "4")
	setEnv(t, "OUTBOX_RETRY_INTERVAL_MINUTES", "7")
	setEnv(t, "OUTBOX_BATCH_SIZE", "33")
	setEnv(t, "OUTBOX_DISPATCH_LEASE_SECONDS", "90")
	setEnv(t, "OUTBOX_DISPATCH_INTERVAL_MINUTES", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "webhooks-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8181" || cfg.GRPC.Port != "9191" {
		t.Fatalf("unexpected ports: http=%s grpc=%s", cfg.HTTP.Port, cfg.GRPC.Port)
	}
	if cfg.MySQL.MaxOpenConns != 20 || cfg.MySQL.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected mysql config: %+v", cfg.MySQL)
	}
	if cfg.Square.WebhookSignatureKey != "sig-key" || cfg.Square.HTTPTimeout != 3*time.Second {
		t.Fatalf("unexpected square config: %+v", cfg.Square)
	}
	if cfg.Webhooks.ProcessingLease != 45*time.Second {
		t.Fatalf("unexpected processing lease: %v", cfg.Webhooks.ProcessingLease)
	}
	if cfg.Redis.DB != 2 || cfg.Redis.OrderCacheTTL != 9*time.Minute {
		t.Fatalf("unexpected redis config: %+v", cfg.Redis)
	}
	if cfg.Outbox.MaxAttempts != 4 || cfg.Outbox.RetryInterval != 7*time.Minute || cfg.Outbox.BatchSize != 33 {
		t.Fatalf("unexpected outbox config: %+v", cfg.Outbox)
	}
	if cfg.Outbox.DispatchLease != 90*time.Second {
		t.Fatalf("unexpected dispatch lease: %v", cfg.Outbox.DispatchLease)
	}
	if cfg.Jobs.OutboxDispatchInterval != 3*time.Minute {
		t.Fatalf("unexpected dispatch interval: %v", cfg.Jobs.OutboxDispatchInterval)
	}
}
