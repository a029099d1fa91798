package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/devfloor/waitline/internal/model"
)

// StoreRepo provides read access to the stores table.  The engines use
// it as a directory: operating range, opening hours and lifecycle flags
// feed queue-registration validation.
type StoreRepo struct {
	db *sql.DB
}

// NewStoreRepo returns a new StoreRepo bound to the provided database.
func NewStoreRepo(db *sql.DB) *StoreRepo { return &StoreRepo{db: db} }

const storeColumns = `id, name, owner_id, operating_start, operating_end,
	TIME_FORMAT(opening_time, '%H:%i:%s'), TIME_FORMAT(closing_time, '%H:%i:%s'),
	max_queue_length, is_active, is_ended, created_at, updated_at`

func scanStore(row interface{ Scan(...any) error }) (*model.Store, error) {
	var s model.Store
	err := row.Scan(&s.ID, &s.Name, &s.OwnerID, &s.OperatingStart, &s.OperatingEnd,
		&s.OpeningTime, &s.ClosingTime, &s.MaxQueueLength, &s.IsActive, &s.IsEnded,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID returns a single store or ErrStoreNotFound.
func (r *StoreRepo) GetByID(ctx context.Context, storeID uint64) (*model.Store, error) {
	const q = `SELECT ` + storeColumns + ` FROM stores WHERE id = ?`
	s, err := scanStore(r.db.QueryRowContext(ctx, q, storeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStoreNotFound
	}
	return s, err
}

// Create inserts a store row and populates its generated ID.  Slot
// materialization for bookable stores happens separately through
// SlotRepo.CreateBulk.
func (r *StoreRepo) Create(ctx context.Context, s *model.Store) error {
	const q = `INSERT INTO stores
	           (name, owner_id, operating_start, operating_end, opening_time, closing_time, max_queue_length, is_active, is_ended)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		s.Name, s.OwnerID,
		s.OperatingStart.Format("2006-01-02"), s.OperatingEnd.Format("2006-01-02"),
		s.OpeningTime, s.ClosingTime, s.MaxQueueLength, s.IsActive, s.IsEnded)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}
