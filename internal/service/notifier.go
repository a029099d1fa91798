package service

import (
	"context"
	"strconv"

	"github.com/devfloor/waitline/internal/model"
)

// Event kinds emitted by the engines.  Delivery, formatting and
// channel choice belong to the NotificationSender implementation.
const (
	EventQueuePositionUpdated = "QUEUE_POSITION_UPDATED"
	EventQueueCalled          = "QUEUE_CALLED"
	EventQueueCanceled        = "QUEUE_CANCELED"
	EventQueueTimeout         = "QUEUE_TIMEOUT"
	EventSlotReserved         = "SLOT_RESERVED"
	EventSlotReleased         = "SLOT_RELEASED"
)

// NotificationSender delivers domain events to a user.  Calls are
// fire-and-forget: the engines never block on delivery and never fail
// an operation because a notification could not be sent.
type NotificationSender interface {
	Notify(ctx context.Context, userID uint64, kind string, payload map[string]string)
}

// NopNotifier discards every event.  Used when no broker is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, uint64, string, map[string]string) {}

// Payload builders are pure functions kept out of the lock-held
// critical sections; engines call them after durable state is settled.

func queuePayload(e *model.QueueEntry, peopleAhead int) map[string]string {
	return map[string]string{
		"store_id":        strconv.FormatUint(e.StoreID, 10),
		"entry_id":        strconv.FormatUint(e.ID, 10),
		"sequence_number": strconv.FormatUint(e.SequenceNumber, 10),
		"people_ahead":    strconv.Itoa(peopleAhead),
	}
}

func queueStatusPayload(e *model.QueueEntry) map[string]string {
	return map[string]string{
		"store_id":        strconv.FormatUint(e.StoreID, 10),
		"entry_id":        strconv.FormatUint(e.ID, 10),
		"sequence_number": strconv.FormatUint(e.SequenceNumber, 10),
		"status":          e.Status,
	}
}

func slotPayload(r *model.Reservation, date, slotTime string) map[string]string {
	return map[string]string{
		"store_id":       strconv.FormatUint(r.StoreID, 10),
		"reservation_id": strconv.FormatUint(r.ID, 10),
		"date":           date,
		"time":           slotTime,
		"party_size":     strconv.Itoa(r.PartySize),
	}
}
