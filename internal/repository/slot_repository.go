package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/devfloor/waitline/internal/model"
)

// SlotRepo provides data access to the slots table: the durable,
// authoritative side of slot capacity.  Capacity arithmetic is done in
// single conditional UPDATE statements so a row can never go negative
// or exceed its total, even if a caller ever reached this layer without
// the slot lock.  All timestamps are UTC.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a new SlotRepo bound to the provided database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotColumns = `id, store_id, DATE_FORMAT(slot_date, '%Y-%m-%d'), TIME_FORMAT(slot_time, '%H:%i:%s'), total, available, status, created_at, updated_at`

func scanSlot(row interface{ Scan(...any) error }) (*model.Slot, error) {
	var s model.Slot
	err := row.Scan(&s.ID, &s.StoreID, &s.Date, &s.Time, &s.Total, &s.Available, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Get returns the slot for a (store, date, time) key.  It returns
// ErrSlotNotFound when no row exists, which callers must distinguish
// from HOLIDAY or PAST slots that do exist but accept no claims.
func (r *SlotRepo) Get(ctx context.Context, storeID uint64, date, slotTime string) (*model.Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots WHERE store_id = ? AND slot_date = ? AND slot_time = ?`
	s, err := scanSlot(r.db.QueryRowContext(ctx, q, storeID, date, slotTime))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	return s, err
}

// GetByID returns the slot with the given primary key or
// ErrSlotNotFound.  Used when resolving a reservation back to the slot
// it claimed.
func (r *SlotRepo) GetByID(ctx context.Context, slotID uint64) (*model.Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots WHERE id = ?`
	s, err := scanSlot(r.db.QueryRowContext(ctx, q, slotID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	return s, err
}

// TryClaim decrements the slot's available count by count if and only if
// at least count units remain, flipping the status to FULL exactly when
// the count reaches zero.  It returns the slot's post-claim state.  The
// caller must hold the slot's distributed lock: the conditional UPDATE
// protects the row alone, not the row-plus-cache pair.
//
// ErrSlotNotFound is returned when the key has no row;
// ErrInsufficientCapacity when the row exists but cannot satisfy the
// claim (too few units, or a HOLIDAY/PAST/FULL status).
func (r *SlotRepo) TryClaim(ctx context.Context, storeID uint64, date, slotTime string, count int) (*model.Slot, error) {
	const q = `UPDATE slots
	           SET available = available - ?,
	               status = IF(available = 0, 'FULL', status)
	           WHERE store_id = ? AND slot_date = ? AND slot_time = ?
	             AND status = 'AVAILABLE' AND available >= ?`
	res, err := r.db.ExecContext(ctx, q, count, storeID, date, slotTime, count)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Distinguish a missing row from an unclaimable one.
		if _, getErr := r.Get(ctx, storeID, date, slotTime); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInsufficientCapacity
	}
	return r.Get(ctx, storeID, date, slotTime)
}

// Release returns count units to the slot, clamped to the immutable
// total, and moves a FULL slot back to AVAILABLE.  It returns the
// slot's post-release state.  Like TryClaim it must run under the
// slot's distributed lock.
func (r *SlotRepo) Release(ctx context.Context, storeID uint64, date, slotTime string, count int) (*model.Slot, error) {
	const q = `UPDATE slots
	           SET available = LEAST(total, available + ?),
	               status = IF(status = 'FULL', 'AVAILABLE', status)
	           WHERE store_id = ? AND slot_date = ? AND slot_time = ?
	             AND status IN ('AVAILABLE', 'FULL')`
	res, err := r.db.ExecContext(ctx, q, count, storeID, date, slotTime)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, getErr := r.Get(ctx, storeID, date, slotTime); getErr != nil {
			return nil, getErr
		}
		// HOLIDAY and PAST slots hold no claims to release.
		return nil, ErrSlotNotFound
	}
	return r.Get(ctx, storeID, date, slotTime)
}

// CreateBulk inserts slot rows in a single statement.  It is used when
// a store registers with a bookable reservation mode and its booking
// horizon is materialized up front.  Passing an empty slice has no
// effect and returns nil.
func (r *SlotRepo) CreateBulk(ctx context.Context, slots []model.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO slots (store_id, slot_date, slot_time, total, available, status) VALUES `)
	args := make([]interface{}, 0, len(slots)*6)
	for i, s := range slots {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, s.StoreID, s.Date, s.Time, s.Total, s.Available, s.Status)
	}
	_, err := r.db.ExecContext(ctx, b.String(), args...)
	return err
}

// ListByStoreDate returns all slots for a store on one date ordered by
// time of day.  When none exist an empty slice is returned.
func (r *SlotRepo) ListByStoreDate(ctx context.Context, storeID uint64, date string) ([]model.Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots WHERE store_id = ? AND slot_date = ? ORDER BY slot_time`
	rows, err := r.db.QueryContext(ctx, q, storeID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Slot, 0)
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// DeleteByStore removes every slot owned by a store.  Slots are never
// deleted individually; this exists for store teardown only.
func (r *SlotRepo) DeleteByStore(ctx context.Context, storeID uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM slots WHERE store_id = ?`, storeID)
	return err
}
