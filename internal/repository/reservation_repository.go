package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/devfloor/waitline/internal/model"
)

// ReservationRepo provides data access to the reservations table.  A
// reservation row exists only for committed claims: the reservation
// engine claims slot capacity first and compensates by releasing it if
// this insert fails, so availability never reflects an uncommitted
// reservation.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given
// database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, store_id, slot_id, user_id, party_size, status, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var v model.Reservation
	err := row.Scan(&v.ID, &v.StoreID, &v.SlotID, &v.UserID, &v.PartySize, &v.Status, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts a CONFIRMED reservation and populates its generated ID
// and timestamps.
func (r *ReservationRepo) Create(ctx context.Context, v *model.Reservation) error {
	const q = `INSERT INTO reservations (store_id, slot_id, user_id, party_size, status) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, v.StoreID, v.SlotID, v.UserID, v.PartySize, v.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	got, err := r.GetByID(ctx, v.ID)
	if err != nil {
		return err
	}
	*v = *got
	return nil
}

// GetByID returns a single reservation or ErrReservationNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	v, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	return v, err
}

// Cancel transitions a CONFIRMED reservation to CANCELED.  Only one
// caller can win the conditional write: a second cancel returns
// ErrReservationNotFound rather than releasing slot capacity twice.
func (r *ReservationRepo) Cancel(ctx context.Context, id uint64) error {
	const q = `UPDATE reservations SET status = 'CANCELED' WHERE id = ? AND status = 'CONFIRMED'`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// ListByUser returns a user's reservations, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		v, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}
