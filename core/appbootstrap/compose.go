package appbootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"checkops/api"
	"checkops/config"
	"checkops/core/alerts"
	"checkops/core/auth"
	"checkops/core/blob"
	"checkops/core/checklists"
	"checkops/core/properties"
	"checkops/core/store"
	"checkops/core/utils"

	"github.com/go-redis/redis/v8"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	generator  *alerts.Generator
	workers    []api.BackgroundWorker
	closers    []io.Closer
}

func (rc *runtimeComposition) Close() {
	for i := len(rc.closers) - 1; i >= 0; i-- {
		_ = rc.closers[i].Close()
	}
}

func composeRuntime(ctx context.Context, cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (*runtimeComposition, error) {
	rc := &runtimeComposition{}

	blobs, err := blob.New(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	if c, ok := blobs.(io.Closer); ok {
		rc.closers = append(rc.closers, c)
	}

	var rdb *redis.Client
	if cfg.Alerts.Source == "redis" || cfg.Properties.DirectoryURL != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rc.closers = append(rc.closers, rdb)
	}

	policy, err := auth.NewPolicy()
	if err != nil {
		rc.Close()
		return nil, err
	}
	st := store.NewStore(db)
	svc := checklists.NewService(st, blobs, cfg, logger)
	dir := properties.New(cfg.Properties, rdb, logger)
	rc.generator = alerts.NewGenerator(svc, st, dir, cfg.Alerts, logger)

	switch cfg.Alerts.Source {
	case "redis":
		consumer := alerts.NewStreamConsumer(rdb, rc.generator, cfg.Alerts, logger)
		rc.workers = append(rc.workers, alerts.NewWorker("redis", consumer, logger))
	case "mqtt":
		source := alerts.NewMQTTSource(rc.generator, cfg.Alerts, logger)
		rc.workers = append(rc.workers, alerts.NewWorker("mqtt", source, logger))
	}

	rc.serverDeps = api.ServerDeps{
		DB:         db,
		Policy:     policy,
		Checklists: svc,
	}
	return rc, nil
}
