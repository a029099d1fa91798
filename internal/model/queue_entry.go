package model

import "time"

// Queue entry states.  COMPLETED and CANCELED are terminal; once an
// entry reaches either it never changes again and no longer counts
// toward queue length or people-ahead ranking.
const (
	QueueWaiting   = "WAITING"
	QueueCalled    = "CALLED"
	QueueCompleted = "COMPLETED"
	QueueCanceled  = "CANCELED"
)

// QueueEntry represents one party's position in a store's live waiting
// line.  The sequence number is assigned once at creation, is strictly
// increasing per store and is never reused or renumbered; it is the sole
// ranking key for computing how many parties stand ahead.  Entries are
// retained after reaching a terminal state for history.
//
// Fields:
//  ID             – primary key identifier.
//  StoreID        – store whose queue the entry belongs to.
//  UserID         – registered party.
//  SequenceNumber – per-store monotonic rank, assigned at creation.
//  Status         – WAITING, CALLED, COMPLETED or CANCELED.
//  CreatedAt      – registration timestamp.
//  UpdatedAt      – last status change timestamp.
type QueueEntry struct {
	ID             uint64    // queue_entries.id
	StoreID        uint64    // queue_entries.store_id
	UserID         uint64    // queue_entries.user_id
	SequenceNumber uint64    // queue_entries.sequence_number
	Status         string    // queue_entries.status
	CreatedAt      time.Time // queue_entries.created_at
	UpdatedAt      time.Time // queue_entries.updated_at
}

// Terminal reports whether the entry has reached a final state.
func (e *QueueEntry) Terminal() bool {
	return e.Status == QueueCompleted || e.Status == QueueCanceled
}

// ValidTransition reports whether a status change is allowed by the
// queue lifecycle: WAITING→CALLED, CALLED→COMPLETED, and any
// non-terminal state →CANCELED.
func ValidTransition(from, to string) bool {
	switch to {
	case QueueCalled:
		return from == QueueWaiting
	case QueueCompleted:
		return from == QueueCalled
	case QueueCanceled:
		return from == QueueWaiting || from == QueueCalled
	default:
		return false
	}
}
