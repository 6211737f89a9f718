package repository

import (
	"context"

	"github.com/floodwatch/platform/internal/domain"
)

// UserRepository persists user credentials.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// ReportRepository persists flood reports.
type ReportRepository interface {
	CreateReport(ctx context.Context, report *domain.Report) error
	ListReportsByReporter(ctx context.Context, reporterID string, limit, offset int) ([]domain.Report, error)
	ListReportsByZone(ctx context.Context, zoneID string, limit int) ([]domain.Report, error)
}

// ZoneRepository reads the monitored-zone catalogue.
type ZoneRepository interface {
	ListZones(ctx context.Context) ([]domain.Zone, error)
	GetZoneByID(ctx context.Context, id string) (*domain.Zone, error)
}
