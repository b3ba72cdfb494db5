package model

import "time"

// Court statuses.  Courts are created AVAILABLE by center setup and only
// maintenance workflows move them to MAINTENANCE; the booking core treats
// the status as read-only.
const (
	CourtAvailable   = "AVAILABLE"
	CourtMaintenance = "MAINTENANCE"
)

// Court represents a bookable physical court within a center.
//
// Fields:
//
//	ID        – uuid primary key.
//	CenterID  – owning center.
//	CourtNo   – court number within the center, unique per center.
//	Status    – AVAILABLE or MAINTENANCE.
//	CreatedAt – creation timestamp.
//	UpdatedAt – last update timestamp.
type Court struct {
	ID        string    `json:"id"`         // courts.id
	CenterID  string    `json:"center_id"`  // courts.center_id
	CourtNo   uint32    `json:"court_no"`   // courts.court_no
	Status    string    `json:"status"`     // courts.status
	CreatedAt time.Time `json:"created_at"` // courts.created_at
	UpdatedAt time.Time `json:"updated_at"` // courts.updated_at
}
