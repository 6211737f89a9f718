package domain

import "time"

// Zone is a monitored area of the flood map. The catalogue is seeded by
// migration and read-only through the API.
type Zone struct {
	ID        string
	Name      string
	District  string
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
}
