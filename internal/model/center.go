package model

import "time"

// Center represents a venue grouping multiple courts.  The hourly price is
// stored on the center and used by the payments service to compute the
// amount charged for a booking.
//
// Fields:
//
//	ID                – uuid primary key.
//	Name              – display name of the center.
//	Address, District, City – location fields, free-form text.
//	PhoneNo           – contact number.
//	Lat, Lng          – coordinates, decimal degrees.
//	PricePerHourCents – price of one court-hour in the smallest currency unit.
//	CreatedAt         – creation timestamp.
//	UpdatedAt         – last update timestamp.
type Center struct {
	ID                string    `json:"id"`                   // centers.id
	Name              string    `json:"name"`                 // centers.name
	Address           string    `json:"address"`              // centers.address
	District          string    `json:"district"`             // centers.district
	City              string    `json:"city"`                 // centers.city
	PhoneNo           string    `json:"phone_no"`             // centers.phone_no
	Lat               float64   `json:"lat"`                  // centers.lat
	Lng               float64   `json:"lng"`                  // centers.lng
	PricePerHourCents uint32    `json:"price_per_hour_cents"` // centers.price_per_hour_cents
	CreatedAt         time.Time `json:"created_at"`           // centers.created_at
	UpdatedAt         time.Time `json:"updated_at"`           // centers.updated_at
}
