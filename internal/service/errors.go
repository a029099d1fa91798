// Package service implements the reservation and waiting queue engines
// on top of the repository, cache and lock layers.  All business rules
// live here: handlers only translate transport concerns, and the
// repositories only guard row-level integrity.
package service

import "errors"

// ErrLockUnavailable is returned when a slot lock could not be acquired
// within the wait window.  No state was changed; the caller may retry.
var ErrLockUnavailable = errors.New("lock unavailable")

// ErrQueueConflict is the registration-path flavour of lock contention.
// It carries the same meaning as ErrLockUnavailable but lets clients
// show a queue-specific message before resubmitting.
var ErrQueueConflict = errors.New("queue conflict")

// ErrNoAvailableSlot is returned when the slot cannot satisfy a claim.
// Unlike lock contention this is not retryable until capacity is
// released.
var ErrNoAvailableSlot = errors.New("no available slot")

// ErrInvalidPartySize is returned for non-positive party sizes.
var ErrInvalidPartySize = errors.New("invalid party size")

// ErrStoreNotOperating is returned when a store is outside its
// operating dates or daily opening window, deactivated, or ended.
var ErrStoreNotOperating = errors.New("store not operating")

// ErrMaxQueueExceeded is returned when a store's queue already holds
// its configured maximum of non-terminal entries.
var ErrMaxQueueExceeded = errors.New("max queue length exceeded")

// ErrDuplicateEntry is returned when the user already has a WAITING or
// CALLED entry in the store's queue.
var ErrDuplicateEntry = errors.New("duplicate queue entry")

// ErrCannotCancelCalled is returned when an entry owner tries to cancel
// an entry that has already been called.  Called entries are actionable
// only by staff or the timeout path.
var ErrCannotCancelCalled = errors.New("cannot cancel a called entry")

// ErrInvalidTransition is returned for status changes the queue
// lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrUnauthorized is returned when the caller does not own the resource
// the operation targets.
var ErrUnauthorized = errors.New("unauthorized")
