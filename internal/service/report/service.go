package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/floodwatch/platform/internal/domain"
	"github.com/floodwatch/platform/internal/repository"
	"github.com/floodwatch/platform/internal/ws"
	"github.com/floodwatch/platform/pkg/config"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ErrUnknownZone signals a report submitted against a zone that does not exist.
var ErrUnknownZone = errors.New("report: unknown zone")

// ValidationError describes malformed report input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("report: invalid %s: %s", e.Field, e.Reason)
}

// Service handles flood report persistence and streaming.
type Service struct {
	reports repository.ReportRepository
	zones   repository.ZoneRepository
	hub     *ws.Hub
	logger  *slog.Logger
	cfg     config.APIConfig
}

// New constructs a report service.
func New(reports repository.ReportRepository, zones repository.ZoneRepository, hub *ws.Hub, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{reports: reports, zones: zones, hub: hub, logger: logger, cfg: cfg}
}

// SubmitInput carries citizen-provided report fields. The reporter identity
// is supplied separately by the session middleware.
type SubmitInput struct {
	ZoneID      string
	Description string
	Severity    string
	Latitude    *float64
	Longitude   *float64
}

// Submit validates, stores and broadcasts a flood report.
func (s Service) Submit(ctx context.Context, reporterID string, input SubmitInput) (*domain.Report, error) {
	input.ZoneID = strings.TrimSpace(input.ZoneID)
	input.Description = strings.TrimSpace(input.Description)
	if input.ZoneID == "" {
		return nil, &ValidationError{Field: "zone_id", Reason: "is required"}
	}
	if input.Description == "" {
		return nil, &ValidationError{Field: "description", Reason: "is required"}
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if _, err := s.zones.GetZoneByID(storeCtx, input.ZoneID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownZone
		}
		return nil, err
	}

	rep := &domain.Report{
		ID:          uuid.NewString(),
		ZoneID:      input.ZoneID,
		ReporterID:  reporterID,
		Description: input.Description,
		Severity:    strings.TrimSpace(input.Severity),
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.reports.CreateReport(storeCtx, rep); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownZone
		}
		return nil, err
	}
	s.logger.Info("report stored", "report_id", rep.ID, "zone_id", rep.ZoneID, "reporter_id", rep.ReporterID)
	s.broadcast(*rep)
	return rep, nil
}

// ListByReporter returns the caller's reports, newest first.
func (s Service) ListByReporter(ctx context.Context, reporterID string, limit, offset int) ([]domain.Report, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.reports.ListReportsByReporter(storeCtx, reporterID, limit, offset)
}

// ListByZone returns the latest reports for a zone.
func (s Service) ListByZone(ctx context.Context, zoneID string, limit int) ([]domain.Report, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.reports.ListReportsByZone(storeCtx, zoneID, clampLimit(limit))
}

// Hub returns the streaming hub (used by the websocket handler).
func (s Service) Hub() *ws.Hub {
	return s.hub
}

func (s Service) broadcast(rep domain.Report) {
	if s.hub == nil {
		return
	}
	data, err := MarshalReport(rep)
	if err != nil {
		s.logger.Warn("failed to marshal report payload", "error", err)
		return
	}
	s.hub.Broadcast(rep.ZoneID, data)
}

func (s Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.StorageTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// MarshalReport formats a report for streaming payloads.
func MarshalReport(rep domain.Report) ([]byte, error) {
	payload := map[string]any{
		"id":          rep.ID,
		"zone_id":     rep.ZoneID,
		"description": rep.Description,
		"severity":    rep.Severity,
		"latitude":    rep.Latitude,
		"longitude":   rep.Longitude,
		"created_at":  rep.CreatedAt.Format(time.RFC3339Nano),
	}
	return json.Marshal(payload)
}
