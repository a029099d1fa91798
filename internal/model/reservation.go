package model

import "time"

// Reservation states.
const (
	ReservationConfirmed = "CONFIRMED"
	ReservationCanceled  = "CANCELED"
)

// Reservation records a user's confirmed claim against a slot.  The
// party size is the number of capacity units claimed; cancelling the
// reservation releases exactly that amount back to the slot.
//
// Fields:
//  ID        – primary key identifier.
//  StoreID   – store the reservation belongs to.
//  SlotID    – slot whose capacity was claimed.
//  UserID    – user who made the reservation.
//  PartySize – capacity units claimed, fully or not at all.
//  Status    – CONFIRMED or CANCELED.
type Reservation struct {
	ID        uint64    // reservations.id
	StoreID   uint64    // reservations.store_id
	SlotID    uint64    // reservations.slot_id
	UserID    uint64    // reservations.user_id
	PartySize int       // reservations.party_size
	Status    string    // reservations.status
	CreatedAt time.Time // reservations.created_at
	UpdatedAt time.Time // reservations.updated_at
}
