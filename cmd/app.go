package cmd

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/accounting"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/cache"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/factory"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/notifier"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/provider"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/repository"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/service"
	"github.com/vibast-solutions/ms-go-payment-webhooks/config"
)

type orderFetcher interface {
	GetOrder(ctx context.Context, orderID string) (*provider.Order, error)
}

type notificationSender interface {
	Send(ctx context.Context, message notifier.Message) error
}

type accountingRecorder interface {
	RecordPayment(ctx context.Context, record accounting.PaymentRecord) error
}

type application struct {
	cfg            *config.Config
	db             *sql.DB
	webhookService *service.WebhookService
	adminService   *service.AdminService
	outboxService  *service.OutboxService
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustOpenDatabase(cfg *config.Config) *sql.DB {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}

func mustCreateApplication() (*application, func()) {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	closers := []func(){
		func() {
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close database")
			}
		},
	}

	paymentRepo := repository.NewPaymentRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	clientRepo := repository.NewClientRepository(db)
	productOrderRepo := repository.NewProductOrderRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	squareProvider := provider.NewSquareProvider(provider.SquareConfig{
		WebhookSignatureKey: cfg.Square.WebhookSignatureKey,
		AccessToken:         cfg.Square.AccessToken,
		APIBaseURL:          cfg.Square.APIBaseURL,
		APIVersion:          cfg.Square.APIVersion,
		HTTPTimeout:         cfg.Square.HTTPTimeout,
	})
	if !squareProvider.SignatureRequired() {
		logrus.Warn("SQUARE_WEBHOOK_SIGNATURE_KEY is not set, webhook signatures are not verified")
	}

	var orders orderFetcher
	if squareProvider.OrderLookupEnabled() {
		orders = squareProvider
		if cfg.Redis.Addr != "" {
			redisClient := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err := redisClient.Ping(context.Background()).Err(); err != nil {
				logrus.WithError(err).Warn("Redis ping failed, order lookups fall back to Square on cache errors")
			}
			closers = append(closers, func() { _ = redisClient.Close() })
			orders = cache.NewOrderCache(redisClient, squareProvider, cfg.Redis.OrderCacheTTL, factory.NewModuleLogger("order-cache"))
		}
	}

	var sender notificationSender
	if cfg.RabbitMQ.URL != "" {
		amqpSender, err := notifier.NewAMQPSender(cfg.RabbitMQ.URL, cfg.RabbitMQ.NotificationsExchange, factory.NewModuleLogger("notifier"))
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to RabbitMQ")
		}
		closers = append(closers, amqpSender.Close)
		sender = amqpSender
	}

	var recorder accountingRecorder
	accountingClient := accounting.NewClient(accounting.Config{
		BaseURL:     cfg.Accounting.BaseURL,
		APIKey:      cfg.Accounting.APIKey,
		HTTPTimeout: cfg.Accounting.HTTPTimeout,
	})
	if accountingClient.Enabled() {
		recorder = accountingClient
	}

	outboxService := service.NewOutboxService(outboxRepo, syncLogRepo, sender, recorder, cfg.Outbox)
	resolver := service.NewResolver(bookingRepo, productOrderRepo, orders)
	paymentService := service.NewPaymentService(paymentRepo, clientRepo, productOrderRepo, resolver, outboxService)
	webhookService := service.NewWebhookService(
		provider.NewRegistry(squareProvider),
		eventRepo,
		service.NewRouter(paymentService),
		service.NewAuditLogger(syncLogRepo),
		cfg.Webhooks,
	)

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	return &application{
		cfg:            cfg,
		db:             db,
		webhookService: webhookService,
		adminService:   service.NewAdminService(eventRepo, syncLogRepo),
		outboxService:  outboxService,
	}, cleanup
}
