package checklists

import (
	"errors"
	"time"

	"checkops/config"
	"checkops/core/auth"
	"checkops/core/blob"
	"checkops/core/store"
	"checkops/core/utils"
)

type Service struct {
	store  *store.Store
	blobs  blob.Store
	cfg    *config.AppConfig
	logger *utils.Logger
	now    func() time.Time
}

func NewService(st *store.Store, blobs blob.Store, cfg *config.AppConfig, logger *utils.Logger) *Service {
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Service{store: st, blobs: blobs, cfg: cfg, logger: logger, now: utils.NowUTC}
}

// SetClock replaces the time source; tests use it to control ordering.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func requireActor(actor auth.Actor) error {
	if err := actor.Validate(); err != nil {
		return invalidField("tenant_id", err.Error())
	}
	return nil
}

func translateStoreErr(err error, resource string, id any) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(resource, id)
	}
	return err
}
