package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devfloor/waitline/internal/lock"
	"github.com/devfloor/waitline/internal/model"
	"github.com/devfloor/waitline/internal/repository"
)

const (
	testWait  = 2 * time.Second
	testLease = 10 * time.Second
)

func newTestEngine(rows *memSlotRepo, resStore *memReservationRepo, notifier *captureNotifier) *ReservationEngine {
	slots := NewSlotStore(rows, newMemCounter(), testLogger())
	return NewReservationEngine(lock.NewLocalLocker(), slots, resStore, notifier, testLogger(), testWait, testLease)
}

func TestReserveExactCapacity(t *testing.T) {
	const capacity = 28
	const callers = 100

	ctx := context.Background()
	rows := newMemSlotRepo()
	rows.add(model.Slot{StoreID: 1, Date: "2026-09-01", Time: "18:00:00", Total: capacity, Available: capacity, Status: model.SlotAvailable})
	resStore := newMemReservationRepo()
	engine := newTestEngine(rows, resStore, &captureNotifier{})

	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			_, err := engine.Reserve(ctx, userID, 1, "2026-09-01", "18:00:00", 1)
			results <- err
		}(uint64(i + 1))
	}
	wg.Wait()
	close(results)

	succeeded, exhausted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrNoAvailableSlot):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, capacity, succeeded, "exactly one success per capacity unit")
	assert.Equal(t, callers-capacity, exhausted)

	slot, err := rows.Get(ctx, 1, "2026-09-01", "18:00:00")
	require.NoError(t, err)
	assert.Equal(t, 0, slot.Available)
	assert.Equal(t, model.SlotFull, slot.Status)
}

func TestReserveCancelRoundTrip(t *testing.T) {
	ctx := context.Background()
	rows := newMemSlotRepo()
	rows.add(model.Slot{StoreID: 1, Date: "2026-09-01", Time: "18:00:00", Total: 4, Available: 4, Status: model.SlotAvailable})
	resStore := newMemReservationRepo()
	notifier := &captureNotifier{}
	engine := newTestEngine(rows, resStore, notifier)

	res, err := engine.Reserve(ctx, 7, 1, "2026-09-01", "18:00:00", 4)
	require.NoError(t, err)
	require.NotZero(t, res.ID)

	slot, _ := rows.Get(ctx, 1, "2026-09-01", "18:00:00")
	assert.Equal(t, 0, slot.Available)
	assert.Equal(t, model.SlotFull, slot.Status)

	require.NoError(t, engine.Cancel(ctx, 7, res.ID))

	slot, _ = rows.Get(ctx, 1, "2026-09-01", "18:00:00")
	assert.Equal(t, 4, slot.Available, "cancel must restore the claimed units")
	assert.Equal(t, model.SlotAvailable, slot.Status, "a full slot reopens on release")

	assert.Len(t, notifier.byKind(EventSlotReserved), 1)
	assert.Len(t, notifier.byKind(EventSlotReleased), 1)
}

func TestReserveCompensatesFailedWrite(t *testing.T) {
	ctx := context.Background()
	rows := newMemSlotRepo()
	rows.add(model.Slot{StoreID: 1, Date: "2026-09-01", Time: "18:00:00", Total: 6, Available: 6, Status: model.SlotAvailable})
	resStore := newMemReservationRepo()
	resStore.failCreate = errors.New("connection lost")
	engine := newTestEngine(rows, resStore, &captureNotifier{})

	_, err := engine.Reserve(ctx, 7, 1, "2026-09-01", "18:00:00", 2)
	require.Error(t, err)

	slot, _ := rows.Get(ctx, 1, "2026-09-01", "18:00:00")
	assert.Equal(t, 6, slot.Available, "claimed units must be released when the reservation write fails")
	assert.Equal(t, model.SlotAvailable, slot.Status)
}

func TestReserveLockContention(t *testing.T) {
	ctx := context.Background()
	rows := newMemSlotRepo()
	rows.add(model.Slot{StoreID: 1, Date: "2026-09-01", Time: "18:00:00", Total: 3, Available: 3, Status: model.SlotAvailable})
	locker := lock.NewLocalLocker()
	slots := NewSlotStore(rows, newMemCounter(), testLogger())
	engine := NewReservationEngine(locker, slots, newMemReservationRepo(), &captureNotifier{}, testLogger(), 30*time.Millisecond, testLease)

	// Another holder pins the slot lock for longer than the engine's
	// wait window.
	tok, ok, err := locker.TryAcquire(ctx, slotLockName(1, "2026-09-01", "18:00:00"), 0, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	defer locker.Release(ctx, slotLockName(1, "2026-09-01", "18:00:00"), tok)

	_, err = engine.Reserve(ctx, 7, 1, "2026-09-01", "18:00:00", 1)
	assert.ErrorIs(t, err, ErrLockUnavailable)

	slot, _ := rows.Get(ctx, 1, "2026-09-01", "18:00:00")
	assert.Equal(t, 3, slot.Available, "a failed acquisition must not touch state")
}

func TestReserveFastFailsOnExhaustedCounter(t *testing.T) {
	ctx := context.Background()
	rows := newMemSlotRepo()
	rows.add(model.Slot{StoreID: 1, Date: "2026-09-01", Time: "18:00:00", Total: 2, Available: 2, Status: model.SlotAvailable})
	locker := lock.NewLocalLocker()
	slots := NewSlotStore(rows, newMemCounter(), testLogger())
	engine := NewReservationEngine(locker, slots, newMemReservationRepo(), &captureNotifier{}, testLogger(), 30*time.Millisecond, testLease)

	// Drain the slot so the counter sits warm at zero.
	_, err := engine.Reserve(ctx, 7, 1, "2026-09-01", "18:00:00", 2)
	require.NoError(t, err)

	// Pin the slot lock.  An exhausted counter must answer before the
	// engine ever reaches for the lock, so the caller sees the slot as
	// full rather than contended.
	tok, ok, err := locker.TryAcquire(ctx, slotLockName(1, "2026-09-01", "18:00:00"), 0, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	defer locker.Release(ctx, slotLockName(1, "2026-09-01", "18:00:00"), tok)

	_, err = engine.Reserve(ctx, 8, 1, "2026-09-01", "18:00:00", 1)
	assert.ErrorIs(t, err, ErrNoAvailableSlot)
}

func TestReserveValidation(t *testing.T) {
	ctx := context.Background()
	rows := newMemSlotRepo()
	rows.add(model.Slot{StoreID: 1, Date: "2026-09-01", Time: "18:00:00", Total: 3, Available: 3, Status: model.SlotAvailable})
	engine := newTestEngine(rows, newMemReservationRepo(), &captureNotifier{})

	_, err := engine.Reserve(ctx, 7, 1, "2026-09-01", "18:00:00", 0)
	assert.ErrorIs(t, err, ErrInvalidPartySize)

	_, err = engine.Reserve(ctx, 7, 1, "2026-09-01", "19:00:00", 1)
	assert.ErrorIs(t, err, repository.ErrSlotNotFound, "unknown slot key")

	_, err = engine.Reserve(ctx, 7, 1, "2026-09-01", "18:00:00", 4)
	assert.ErrorIs(t, err, ErrNoAvailableSlot, "oversized claim is all-or-nothing")
}

func TestCancelGuards(t *testing.T) {
	ctx := context.Background()
	rows := newMemSlotRepo()
	rows.add(model.Slot{StoreID: 1, Date: "2026-09-01", Time: "18:00:00", Total: 5, Available: 5, Status: model.SlotAvailable})
	engine := newTestEngine(rows, newMemReservationRepo(), &captureNotifier{})

	res, err := engine.Reserve(ctx, 7, 1, "2026-09-01", "18:00:00", 2)
	require.NoError(t, err)

	// Not the owner.
	assert.ErrorIs(t, engine.Cancel(ctx, 8, res.ID), ErrUnauthorized)

	require.NoError(t, engine.Cancel(ctx, 7, res.ID))

	// Second cancel must not release capacity again.
	assert.ErrorIs(t, engine.Cancel(ctx, 7, res.ID), repository.ErrReservationNotFound)
	slot, _ := rows.Get(ctx, 1, "2026-09-01", "18:00:00")
	assert.Equal(t, 5, slot.Available)
}
