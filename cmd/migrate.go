package cmd

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-payment-webhooks/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Run: func(_ *cobra.Command, _ []string) {
		runMigration("up", func(m *migrate.Migrate) error { return m.Up() })
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Run: func(_ *cobra.Command, _ []string) {
		runMigration("down", func(m *migrate.Migrate) error { return m.Steps(-1) })
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

func runMigration(direction string, fn func(m *migrate.Migrate) error) {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open embedded migrations")
	}

	driver, err := migratemysql.WithInstance(db, &migratemysql.Config{})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", source, "mysql", driver)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize migrations")
	}

	l := logrus.WithField("direction", direction)
	if err := fn(m); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			l.Info("Database schema already up to date")
			return
		}
		l.WithError(err).Fatal("Migration failed")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		l.WithError(err).Warn("Failed to read migration version")
		return
	}
	l.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("Migrations applied")
}
