package model

import "time"

// Store represents a single independently operated venue.  Each store
// owns its reservation slots and its waiting queue.  Operating dates and
// daily opening hours gate queue registration; a deactivated or ended
// store accepts neither reservations nor queue entries.
//
// Fields:
//  ID             – primary key identifier.
//  Name           – display name of the store.
//  OwnerID        – user who operates the store.
//  OperatingStart – first calendar date the store operates.
//  OperatingEnd   – last calendar date the store operates.
//  OpeningTime    – daily opening time ("15:04:05").
//  ClosingTime    – daily closing time ("15:04:05").
//  MaxQueueLength – upper bound on non-terminal queue entries.
//  IsActive       – administrative on/off switch.
//  IsEnded        – permanently closed flag.
type Store struct {
	ID             uint64    // stores.id
	Name           string    // stores.name
	OwnerID        uint64    // stores.owner_id
	OperatingStart time.Time // stores.operating_start
	OperatingEnd   time.Time // stores.operating_end
	OpeningTime    string    // stores.opening_time
	ClosingTime    string    // stores.closing_time
	MaxQueueLength int       // stores.max_queue_length
	IsActive       bool      // stores.is_active
	IsEnded        bool      // stores.is_ended
	CreatedAt      time.Time // stores.created_at
	UpdatedAt      time.Time // stores.updated_at
}

// OpenAt reports whether the store accepts queue registrations at the
// given instant: the date falls inside the operating range, the wall
// clock falls inside the opening window, and the store has not been
// deactivated or ended.
func (s *Store) OpenAt(t time.Time) bool {
	if !s.IsActive || s.IsEnded {
		return false
	}
	day := t.Format("2006-01-02")
	if day < s.OperatingStart.Format("2006-01-02") || day > s.OperatingEnd.Format("2006-01-02") {
		return false
	}
	clock := t.Format("15:04:05")
	return clock >= s.OpeningTime && clock < s.ClosingTime
}
