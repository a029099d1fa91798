package model

import "time"

// Slot availability states.  A slot flips to FULL exactly when its
// available count reaches zero and returns to AVAILABLE on any release
// from FULL.  HOLIDAY and PAST slots never accept claims.
const (
	SlotAvailable = "AVAILABLE"
	SlotFull      = "FULL"
	SlotHoliday   = "HOLIDAY"
	SlotPast      = "PAST"
)

// Slot represents one bookable time unit for one store on one date.
// Slots are created in bulk when a store is registered with a bookable
// reservation mode and are never deleted individually.  Total capacity
// is immutable after creation; the available count moves only through
// successful claims and releases.
//
// Fields:
//  ID        – primary key identifier.
//  StoreID   – owning store.
//  Date      – calendar date of the slot.
//  Time      – time of day ("15:04:05").
//  Total     – immutable total capacity.
//  Available – remaining capacity, 0 <= Available <= Total.
//  Status    – AVAILABLE, FULL, HOLIDAY or PAST.
type Slot struct {
	ID        uint64    // slots.id
	StoreID   uint64    // slots.store_id
	Date      string    // slots.slot_date ("2006-01-02")
	Time      string    // slots.slot_time ("15:04:05")
	Total     int       // slots.total
	Available int       // slots.available
	Status    string    // slots.status
	CreatedAt time.Time // slots.created_at
	UpdatedAt time.Time // slots.updated_at
}

// Claimable reports whether the slot can currently satisfy a claim of
// the given size.
func (s *Slot) Claimable(count int) bool {
	return s.Status == SlotAvailable && count > 0 && s.Available >= count
}
