// Package repository implements data access over the relational store
// of record.  Sentinel errors defined here let higher layers distinguish
// failure scenarios with errors.Is without depending on SQL details:
// business exhaustion (ErrInsufficientCapacity) is a different caller
// experience than a missing row (ErrSlotNotFound).
package repository

import "errors"

// ErrSlotNotFound is returned when no slot row exists for a
// (store, date, time) key.  This distinguishes "never initialized"
// from HOLIDAY or PAST slots, which do have rows.
var ErrSlotNotFound = errors.New("slot not found")

// ErrInsufficientCapacity is returned when a claim asks for more units
// than the slot has available.  Claims are all-or-nothing; there are no
// partial claims.
var ErrInsufficientCapacity = errors.New("insufficient capacity")

// ErrStoreNotFound is returned when a store lookup matches no row.
var ErrStoreNotFound = errors.New("store not found")

// ErrEntryNotFound is returned when a queue entry lookup matches no row.
var ErrEntryNotFound = errors.New("queue entry not found")

// ErrReservationNotFound is returned when a reservation lookup matches
// no row.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrUserNotFound is returned when a user lookup matches no row.
var ErrUserNotFound = errors.New("user not found")
