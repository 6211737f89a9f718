package zone

import (
	"context"
	"time"

	"log/slog"

	"github.com/floodwatch/platform/internal/domain"
	"github.com/floodwatch/platform/internal/repository"
	"github.com/floodwatch/platform/pkg/config"
)

// Service exposes the monitored-zone catalogue. Zones are seeded by
// migration; this surface is read-only.
type Service struct {
	zones  repository.ZoneRepository
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a zone service.
func New(zones repository.ZoneRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{zones: zones, logger: logger, cfg: cfg}
}

// List returns every monitored zone.
func (s Service) List(ctx context.Context) ([]domain.Zone, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.zones.ListZones(storeCtx)
}

// Get returns a single zone by identifier.
func (s Service) Get(ctx context.Context, id string) (*domain.Zone, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.zones.GetZoneByID(storeCtx, id)
}

func (s Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.StorageTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
