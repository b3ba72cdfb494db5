package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/hoangnm/court-booking/internal/model"
)

// CourtRepo provides access to the courts table.  The booking core only
// reads courts; creation happens during center setup and status changes
// belong to maintenance workflows.
type CourtRepo struct {
	db *sql.DB
}

// NewCourtRepo returns a new CourtRepo bound to the given database.
func NewCourtRepo(db *sql.DB) *CourtRepo { return &CourtRepo{db: db} }

// Create inserts a new court in status AVAILABLE and populates the
// generated uuid on the provided model.
func (r *CourtRepo) Create(ctx context.Context, c *model.Court) error {
	c.ID = uuid.NewString()
	if c.Status == "" {
		c.Status = model.CourtAvailable
	}
	const q = `INSERT INTO courts (id, center_id, court_no, status) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, c.ID, c.CenterID, c.CourtNo, c.Status)
	return err
}

// GetByID returns a single court or ErrNotFound.
func (r *CourtRepo) GetByID(ctx context.Context, id string) (*model.Court, error) {
	const q = `SELECT id, center_id, court_no, status, created_at, updated_at FROM courts WHERE id = ?`
	var c model.Court
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&c.ID, &c.CenterID, &c.CourtNo, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByCenter returns every court of a center ordered by court number.
func (r *CourtRepo) ListByCenter(ctx context.Context, centerID string) ([]model.Court, error) {
	const q = `SELECT id, center_id, court_no, status, created_at, updated_at
	           FROM courts WHERE center_id = ? ORDER BY court_no ASC`
	return r.queryCourts(ctx, q, centerID)
}

// ListAvailableByCenter returns the courts of a center in status AVAILABLE,
// ordered by court number ascending.  The stable ordering makes allocation
// attempts reproducible: concurrent callers walk the same candidate list.
func (r *CourtRepo) ListAvailableByCenter(ctx context.Context, centerID string) ([]model.Court, error) {
	const q = `SELECT id, center_id, court_no, status, created_at, updated_at
	           FROM courts WHERE center_id = ? AND status = 'AVAILABLE' ORDER BY court_no ASC`
	return r.queryCourts(ctx, q, centerID)
}

func (r *CourtRepo) queryCourts(ctx context.Context, q string, args ...interface{}) ([]model.Court, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	courts := make([]model.Court, 0)
	for rows.Next() {
		var c model.Court
		if err := rows.Scan(&c.ID, &c.CenterID, &c.CourtNo, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		courts = append(courts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return courts, nil
}
