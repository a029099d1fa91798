package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/devfloor/waitline/internal/lock"
	"github.com/devfloor/waitline/internal/metrics"
	"github.com/devfloor/waitline/internal/model"
	"github.com/devfloor/waitline/internal/repository"
)

// ReservationRepository persists confirmed claims.  Satisfied by
// repository.ReservationRepo.
type ReservationRepository interface {
	Create(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	Cancel(ctx context.Context, id uint64) error
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
}

// ReservationEngine serializes capacity claims per slot through the
// distributed lock and keeps the durable reservation record, the slot
// row and the fast counter consistent.  Every public method leaves
// state either fully pre-operation or fully post-operation: a claim
// whose reservation write fails is released again before the error
// propagates.
type ReservationEngine struct {
	locker   lock.Locker
	slots    *SlotStore
	store    ReservationRepository
	notifier NotificationSender
	log      zerolog.Logger

	lockWait  time.Duration
	lockLease time.Duration
}

// NewReservationEngine wires a ReservationEngine.  lockWait bounds how
// long a caller blocks on slot contention; lockLease bounds how long a
// crashed holder can block a slot.
func NewReservationEngine(locker lock.Locker, slots *SlotStore, store ReservationRepository, notifier NotificationSender, log zerolog.Logger, lockWait, lockLease time.Duration) *ReservationEngine {
	return &ReservationEngine{
		locker:    locker,
		slots:     slots,
		store:     store,
		notifier:  notifier,
		log:       log,
		lockWait:  lockWait,
		lockLease: lockLease,
	}
}

func slotLockName(storeID uint64, date, slotTime string) string {
	return fmt.Sprintf("slot:%d:%s:%s", storeID, date, slotTime)
}

// Reserve claims partySize units of the slot and persists a CONFIRMED
// reservation for userID.  The claim is all-or-nothing.
//
// Returns ErrLockUnavailable on lock contention (nothing happened, the
// caller may retry), repository.ErrSlotNotFound when the slot key has
// no row, and ErrNoAvailableSlot when the slot cannot satisfy the
// claim.
func (e *ReservationEngine) Reserve(ctx context.Context, userID, storeID uint64, date, slotTime string, partySize int) (*model.Reservation, error) {
	if partySize < 1 {
		return nil, ErrInvalidPartySize
	}

	// Fast-fail from the counter before paying for the lock.  The
	// reading is advisory: a positive one still has to survive the
	// locked row claim below, and a read failure falls through to it.
	if n, err := e.slots.Available(ctx, storeID, date, slotTime); err == nil && n < partySize {
		metrics.IncReservation("no_capacity")
		return nil, ErrNoAvailableSlot
	}

	name := slotLockName(storeID, date, slotTime)
	token, ok, err := e.locker.TryAcquire(ctx, name, e.lockWait, e.lockLease)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.IncLockContention("slot")
		return nil, ErrLockUnavailable
	}
	defer func() {
		if err := e.locker.Release(context.WithoutCancel(ctx), name, token); err != nil {
			e.log.Error().Err(err).Str("lock", name).Msg("slot lock release failed")
		}
	}()

	slot, err := e.slots.TryClaim(ctx, storeID, date, slotTime, partySize)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCapacity) {
			metrics.IncReservation("no_capacity")
			return nil, ErrNoAvailableSlot
		}
		return nil, err
	}

	res := &model.Reservation{
		StoreID:   storeID,
		SlotID:    slot.ID,
		UserID:    userID,
		PartySize: partySize,
		Status:    model.ReservationConfirmed,
	}
	if err := e.store.Create(ctx, res); err != nil {
		// Compensate: the claim is only valid while a committed
		// reservation backs it.
		if _, relErr := e.slots.Release(ctx, storeID, date, slotTime, partySize); relErr != nil {
			e.log.Error().Err(relErr).
				Uint64("store_id", storeID).Str("date", date).Str("time", slotTime).
				Int("party_size", partySize).
				Msg("compensating release failed after reservation write failure")
		}
		return nil, err
	}

	e.log.Info().Uint64("reservation_id", res.ID).Uint64("store_id", storeID).
		Str("date", date).Str("time", slotTime).Int("party_size", partySize).
		Int("available", slot.Available).Msg("reservation confirmed")
	metrics.IncReservation("confirmed")
	e.notifier.Notify(ctx, userID, EventSlotReserved, slotPayload(res, date, slotTime))
	return res, nil
}

// Cancel marks the reservation CANCELED and returns its party size to
// the slot, under the same per-slot lock as Reserve.  Only the owner
// may cancel; a second cancel of the same reservation fails with
// repository.ErrReservationNotFound so capacity is never released
// twice.
func (e *ReservationEngine) Cancel(ctx context.Context, userID, reservationID uint64) error {
	res, err := e.store.GetByID(ctx, reservationID)
	if err != nil {
		return err
	}
	if res.UserID != userID {
		return ErrUnauthorized
	}
	slot, err := e.slots.GetByID(ctx, res.SlotID)
	if err != nil {
		return err
	}

	name := slotLockName(slot.StoreID, slot.Date, slot.Time)
	token, ok, err := e.locker.TryAcquire(ctx, name, e.lockWait, e.lockLease)
	if err != nil {
		return err
	}
	if !ok {
		metrics.IncLockContention("slot")
		return ErrLockUnavailable
	}
	defer func() {
		if err := e.locker.Release(context.WithoutCancel(ctx), name, token); err != nil {
			e.log.Error().Err(err).Str("lock", name).Msg("slot lock release failed")
		}
	}()

	if err := e.store.Cancel(ctx, reservationID); err != nil {
		return err
	}
	if _, err := e.slots.Release(ctx, slot.StoreID, slot.Date, slot.Time, res.PartySize); err != nil {
		// The reservation is already CANCELED; the slot row did not
		// take the units back.  Surface the error so the caller knows
		// the release did not land.
		e.log.Error().Err(err).Uint64("reservation_id", reservationID).
			Msg("capacity release failed after reservation cancel")
		return err
	}

	e.log.Info().Uint64("reservation_id", reservationID).Uint64("store_id", slot.StoreID).
		Int("party_size", res.PartySize).Msg("reservation canceled")
	metrics.IncReservation("canceled")
	e.notifier.Notify(ctx, userID, EventSlotReleased, slotPayload(res, slot.Date, slot.Time))
	return nil
}

// ListByUser returns the user's reservations, newest first.
func (e *ReservationEngine) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return e.store.ListByUser(ctx, userID)
}
