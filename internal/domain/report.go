package domain

import "time"

// Report is a citizen-submitted flood observation. ReporterID always comes
// from the authenticated session, never from request input.
type Report struct {
	ID          string
	ZoneID      string
	ReporterID  string
	Description string
	Severity    string
	Latitude    *float64
	Longitude   *float64
	CreatedAt   time.Time
}
