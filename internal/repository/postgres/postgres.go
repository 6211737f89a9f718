package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floodwatch/platform/internal/domain"
	"github.com/floodwatch/platform/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository   = (*Repository)(nil)
	_ repository.ReportRepository = (*Repository)(nil)
	_ repository.ZoneRepository   = (*Repository)(nil)
)

// CreateUser inserts a user. Email collisions surface as ErrDuplicate; the
// unique index serializes concurrent creates on the same address.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.Name, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicate
		}
		return storageErr(err)
	}
	return nil
}

// GetUserByEmail fetches a user by login handle.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, email, name, password_hash, created_at FROM users WHERE email = $1`
	row := r.pool.QueryRow(ctx, query, email)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, storageErr(err)
	}
	return &u, nil
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, name, password_hash, created_at FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, storageErr(err)
	}
	return &u, nil
}

// CreateReport inserts a flood report.
func (r *Repository) CreateReport(ctx context.Context, report *domain.Report) error {
	const query = `INSERT INTO flood_reports (id, zone_id, reporter_id, description, severity, latitude, longitude, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query,
		report.ID,
		report.ZoneID,
		report.ReporterID,
		report.Description,
		report.Severity,
		report.Latitude,
		report.Longitude,
		report.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23503":
				return repository.ErrNotFound
			case "23505":
				return repository.ErrDuplicate
			}
		}
		return storageErr(err)
	}
	return nil
}

// ListReportsByReporter returns a user's reports, newest first.
func (r *Repository) ListReportsByReporter(ctx context.Context, reporterID string, limit, offset int) ([]domain.Report, error) {
	const query = `SELECT id, zone_id, reporter_id, description, severity, latitude, longitude, created_at
		FROM flood_reports
		WHERE reporter_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, reporterID, limit, offset)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()
	return scanReports(rows)
}

// ListReportsByZone returns the latest reports for a zone.
func (r *Repository) ListReportsByZone(ctx context.Context, zoneID string, limit int) ([]domain.Report, error) {
	const query = `SELECT id, zone_id, reporter_id, description, severity, latitude, longitude, created_at
		FROM flood_reports
		WHERE zone_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, zoneID, limit)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()
	return scanReports(rows)
}

// ListZones returns the full zone catalogue.
func (r *Repository) ListZones(ctx context.Context) ([]domain.Zone, error) {
	const query = `SELECT id, name, district, latitude, longitude, created_at FROM zones ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	zones := make([]domain.Zone, 0)
	for rows.Next() {
		var z domain.Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.District, &z.Latitude, &z.Longitude, &z.CreatedAt); err != nil {
			return nil, storageErr(err)
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return zones, nil
}

// GetZoneByID returns a zone by identifier.
func (r *Repository) GetZoneByID(ctx context.Context, id string) (*domain.Zone, error) {
	const query = `SELECT id, name, district, latitude, longitude, created_at FROM zones WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var z domain.Zone
	if err := row.Scan(&z.ID, &z.Name, &z.District, &z.Latitude, &z.Longitude, &z.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, storageErr(err)
	}
	return &z, nil
}

func scanReports(rows pgx.Rows) ([]domain.Report, error) {
	reports := make([]domain.Report, 0)
	for rows.Next() {
		var rep domain.Report
		if err := rows.Scan(&rep.ID, &rep.ZoneID, &rep.ReporterID, &rep.Description, &rep.Severity, &rep.Latitude, &rep.Longitude, &rep.CreatedAt); err != nil {
			return nil, storageErr(err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return reports, nil
}

// storageErr maps timeouts and cancellations to ErrUnavailable so callers see
// a bounded infrastructure fault instead of hanging indefinitely.
func storageErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return repository.ErrUnavailable
	}
	return err
}
