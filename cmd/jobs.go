package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/service"
	"github.com/vibast-solutions/ms-go-payment-webhooks/config"
)

var (
	workerMode bool
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Run side-effect outbox commands",
}

var outboxDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Deliver pending receipt notifications and accounting records",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"outbox_dispatch",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.OutboxDispatchInterval },
			func(s *service.OutboxService, ctx context.Context) error {
				return s.RunDispatchBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(outboxCmd)
	outboxCmd.AddCommand(outboxDispatchCmd)

	outboxCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.OutboxService, ctx context.Context) error,
) {
	app, cleanup := mustCreateApplication()
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(app.cfg), app.outboxService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(app.outboxService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	outboxService *service.OutboxService,
	fn func(s *service.OutboxService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(outboxService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(outboxService, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
