package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	MySQL             MySQLConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Square            SquareConfig
	Webhooks          WebhooksConfig
	Redis             RedisConfig
	RabbitMQ          RabbitMQConfig
	Accounting        AccountingConfig
	Outbox            OutboxConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type SquareConfig struct {
	WebhookSignatureKey    string
	WebhookNotificationURL string
	AccessToken            string
	APIBaseURL             string
	APIVersion             string
	HTTPTimeout            time.Duration
}

type WebhooksConfig struct {
	ProcessingLease time.Duration
}

type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	OrderCacheTTL time.Duration
}

type RabbitMQConfig struct {
	URL                   string
	NotificationsExchange string
}

type AccountingConfig struct {
	BaseURL     string
	APIKey      string
	HTTPTimeout time.Duration
}

type OutboxConfig struct {
	MaxAttempts   int32
	RetryInterval time.Duration
	BatchSize     int32
	// DispatchLease is how long a claimed message stays invisible to other dispatchers.
	DispatchLease time.Duration
}

type JobsConfig struct {
	OutboxDispatchInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "payment-webhooks-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		Square: SquareConfig{
			WebhookSignatureKey:    getEnv("SQUARE_WEBHOOK_SIGNATURE_KEY", ""),
			WebhookNotificationURL: getEnv("SQUARE_WEBHOOK_NOTIFICATION_URL", ""),
			AccessToken:            getEnv("SQUARE_ACCESS_TOKEN", ""),
			APIBaseURL:             getEnv("SQUARE_API_BASE_URL", "https://connect.squareup.com"),
			APIVersion:             getEnv("SQUARE_API_VERSION", "2024-10-17"),
			HTTPTimeout:            getSecondsEnv("SQUARE_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Webhooks: WebhooksConfig{
			ProcessingLease: getSecondsEnv("WEBHOOKS_PROCESSING_LEASE_SECONDS", 2*time.Minute),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", ""),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getIntEnv("REDIS_DB", 0),
			OrderCacheTTL: getMinutesEnv("ORDER_CACHE_TTL_MINUTES", 15*time.Minute),
		},
		RabbitMQ: RabbitMQConfig{
			URL:                   getEnv("RABBITMQ_URL", ""),
			NotificationsExchange: getEnv("NOTIFICATIONS_EXCHANGE", "notifications"),
		},
		Accounting: AccountingConfig{
			BaseURL:     getEnv("ACCOUNTING_BASE_URL", ""),
			APIKey:      getEnv("ACCOUNTING_API_KEY", ""),
			HTTPTimeout: getSecondsEnv("ACCOUNTING_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Outbox: OutboxConfig{
			MaxAttempts:   int32(getIntEnv("OUTBOX_MAX_ATTEMPTS", 10)),
			RetryInterval: getMinutesEnv("OUTBOX_RETRY_INTERVAL_MINUTES", 5*time.Minute),
			BatchSize:     int32(getIntEnv("OUTBOX_BATCH_SIZE", 100)),
			DispatchLease: getSecondsEnv("OUTBOX_DISPATCH_LEASE_SECONDS", 5*time.Minute),
		},
		Jobs: JobsConfig{
			OutboxDispatchInterval: getMinutesEnv("OUTBOX_DISPATCH_INTERVAL_MINUTES", time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
