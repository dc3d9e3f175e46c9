package appbootstrap

import (
	"context"
	"fmt"
	"time"

	"checkops/api"
	"checkops/config"
	"checkops/core/store"
	"checkops/core/utils"
)

// Run opens the database, applies migrations, starts the alert workers and serves HTTP
// until ctx is cancelled.
func Run(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) error {
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	rc, err := composeRuntime(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	defer rc.Close()

	for _, w := range rc.workers {
		w.StartWithContext(ctx)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, w := range rc.workers {
			if err := w.StopWithContext(stopCtx); err != nil {
				logger.Warnw("background worker did not stop in time", "error", err.Error())
			}
		}
	}()

	server := api.NewServer(cfg, rc.serverDeps, logger)
	logger.Infow("checkops started", "db_driver", cfg.DBDriver, "alerts_source", cfg.Alerts.Source, "blob_driver", cfg.Blob.Driver)
	return server.Run(ctx)
}

// Migrate applies pending schema migrations and exits.
func Migrate(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) error {
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return store.ApplyMigrations(ctx, db, logger)
}
