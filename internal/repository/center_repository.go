package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/hoangnm/court-booking/internal/model"
)

// CenterRepo provides CRUD operations for centers.  A center groups the
// courts of one venue and carries the hourly price used by payments.
type CenterRepo struct {
	db *sql.DB
}

// NewCenterRepo returns a new CenterRepo bound to the given database.
func NewCenterRepo(db *sql.DB) *CenterRepo { return &CenterRepo{db: db} }

// Create inserts a new center and populates the generated uuid on the
// provided model.
func (r *CenterRepo) Create(ctx context.Context, c *model.Center) error {
	c.ID = uuid.NewString()
	const q = `INSERT INTO centers (id, name, address, district, city, phone_no, lat, lng, price_per_hour_cents)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.Name, c.Address, c.District, c.City, c.PhoneNo, c.Lat, c.Lng, c.PricePerHourCents,
	)
	return err
}

// GetByID returns a single center.  ErrNotFound is returned when the id
// does not exist.
func (r *CenterRepo) GetByID(ctx context.Context, id string) (*model.Center, error) {
	const q = `SELECT id, name, address, district, city, phone_no, lat, lng, price_per_hour_cents, created_at, updated_at
	           FROM centers WHERE id = ?`
	var c model.Center
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&c.ID, &c.Name, &c.Address, &c.District, &c.City, &c.PhoneNo,
		&c.Lat, &c.Lng, &c.PricePerHourCents, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns all centers ordered by name.  Filtering by geography is a
// concern of a separate search service and is intentionally not done here.
func (r *CenterRepo) List(ctx context.Context) ([]model.Center, error) {
	const q = `SELECT id, name, address, district, city, phone_no, lat, lng, price_per_hour_cents, created_at, updated_at
	           FROM centers ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	centers := make([]model.Center, 0)
	for rows.Next() {
		var c model.Center
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Address, &c.District, &c.City, &c.PhoneNo,
			&c.Lat, &c.Lng, &c.PricePerHourCents, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		centers = append(centers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return centers, nil
}
