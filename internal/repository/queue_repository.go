package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/devfloor/waitline/internal/model"
)

// QueueRepo provides data access to the queue_entries table.  Sequence
// numbers are assigned by reading the per-store maximum and inserting
// max+1; this is only gap-free because every writer does it inside the
// store's queue lock, and the UNIQUE(store_id, sequence_number) key
// turns any violation of that rule into a hard database error rather
// than a silent duplicate.  Entries are never deleted; terminal rows
// remain as history.
type QueueRepo struct {
	db *sql.DB
}

// NewQueueRepo returns a new QueueRepo bound to the provided database.
func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

const entryColumns = `id, store_id, user_id, sequence_number, status, created_at, updated_at`

func scanEntry(row interface{ Scan(...any) error }) (*model.QueueEntry, error) {
	var e model.QueueEntry
	err := row.Scan(&e.ID, &e.StoreID, &e.UserID, &e.SequenceNumber, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByID returns a single entry or ErrEntryNotFound.
func (r *QueueRepo) GetByID(ctx context.Context, entryID uint64) (*model.QueueEntry, error) {
	const q = `SELECT ` + entryColumns + ` FROM queue_entries WHERE id = ?`
	e, err := scanEntry(r.db.QueryRowContext(ctx, q, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	return e, err
}

// NextSequence returns 1 + the highest sequence number ever assigned
// for the store, defaulting to 1 when the store has no entries.
// Terminal entries count: sequence numbers are never reused.  Must be
// called while holding the store's queue lock.
func (r *QueueRepo) NextSequence(ctx context.Context, storeID uint64) (uint64, error) {
	const q = `SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM queue_entries WHERE store_id = ?`
	var next uint64
	if err := r.db.QueryRowContext(ctx, q, storeID).Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

// Create inserts a new WAITING entry and populates its generated ID and
// timestamps.  Must be called while holding the store's queue lock so
// the sequence number computed by NextSequence is still fresh.
func (r *QueueRepo) Create(ctx context.Context, e *model.QueueEntry) error {
	const q = `INSERT INTO queue_entries (store_id, user_id, sequence_number, status) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, e.StoreID, e.UserID, e.SequenceNumber, e.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	// Query back the row to populate database-assigned timestamps.
	got, err := r.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	*e = *got
	return nil
}

// ActiveByUser returns the user's non-terminal entry for a store, or
// ErrEntryNotFound when the user has none.  At most one can exist at a
// time; if the invariant were ever broken the oldest is returned.
func (r *QueueRepo) ActiveByUser(ctx context.Context, storeID, userID uint64) (*model.QueueEntry, error) {
	const q = `SELECT ` + entryColumns + ` FROM queue_entries
	           WHERE store_id = ? AND user_id = ? AND status IN ('WAITING', 'CALLED')
	           ORDER BY sequence_number LIMIT 1`
	e, err := scanEntry(r.db.QueryRowContext(ctx, q, storeID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	return e, err
}

// CountActive returns the number of non-terminal entries for a store;
// this is the figure bounded by the store's max queue length.
func (r *QueueRepo) CountActive(ctx context.Context, storeID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM queue_entries WHERE store_id = ? AND status IN ('WAITING', 'CALLED')`
	var n int
	err := r.db.QueryRowContext(ctx, q, storeID).Scan(&n)
	return n, err
}

// CountAhead returns the number of non-terminal entries with a strictly
// smaller sequence number: the "people ahead" figure.  It is always
// computed fresh from the rows, never cached.
func (r *QueueRepo) CountAhead(ctx context.Context, storeID, sequence uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM queue_entries
	           WHERE store_id = ? AND sequence_number < ? AND status IN ('WAITING', 'CALLED')`
	var n int
	err := r.db.QueryRowContext(ctx, q, storeID, sequence).Scan(&n)
	return n, err
}

// ActiveAfter returns all non-terminal entries with a sequence number
// strictly greater than the given one, ascending.  The queue advancer
// walks this list after a transition to renotify everyone behind it.
func (r *QueueRepo) ActiveAfter(ctx context.Context, storeID, sequence uint64) ([]model.QueueEntry, error) {
	const q = `SELECT ` + entryColumns + ` FROM queue_entries
	           WHERE store_id = ? AND sequence_number > ? AND status IN ('WAITING', 'CALLED')
	           ORDER BY sequence_number`
	rows, err := r.db.QueryContext(ctx, q, storeID, sequence)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.QueueEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// UpdateStatus transitions an entry from an expected current status to
// a new one.  The expected status makes the write conditional, so a
// concurrent transition (staff action racing the timeout scheduler)
// loses cleanly with ErrEntryNotFound instead of double-applying.
func (r *QueueRepo) UpdateStatus(ctx context.Context, entryID uint64, from, to string) error {
	const q = `UPDATE queue_entries SET status = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, to, entryID, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// CalledBefore returns all CALLED entries whose last status change is
// older than the cutoff.  The timeout scheduler feeds these into the
// same cancellation path staff use.
func (r *QueueRepo) CalledBefore(ctx context.Context, cutoff time.Time) ([]model.QueueEntry, error) {
	const q = `SELECT ` + entryColumns + ` FROM queue_entries
	           WHERE status = 'CALLED' AND updated_at < ?
	           ORDER BY store_id, sequence_number`
	rows, err := r.db.QueryContext(ctx, q, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.QueueEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
