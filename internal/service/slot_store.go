package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/devfloor/waitline/internal/model"
)

// SlotRepository is the durable side of slot capacity.  Satisfied by
// repository.SlotRepo.
type SlotRepository interface {
	Get(ctx context.Context, storeID uint64, date, slotTime string) (*model.Slot, error)
	GetByID(ctx context.Context, slotID uint64) (*model.Slot, error)
	TryClaim(ctx context.Context, storeID uint64, date, slotTime string, count int) (*model.Slot, error)
	Release(ctx context.Context, storeID uint64, date, slotTime string, count int) (*model.Slot, error)
	ListByStoreDate(ctx context.Context, storeID uint64, date string) ([]model.Slot, error)
	CreateBulk(ctx context.Context, slots []model.Slot) error
}

// CounterCache is the fast counter over the shared cache.  Satisfied by
// cache.SlotCounter.
type CounterCache interface {
	Get(ctx context.Context, storeID uint64, date, slotTime string) (int, bool, error)
	Set(ctx context.Context, storeID uint64, date, slotTime string, available int) error
	Invalidate(ctx context.Context, storeID uint64, date, slotTime string) error
}

// SlotStore pairs the authoritative slot row with its write-through
// counter.  The row alone decides every claim; the counter exists so
// "is anything left" checks skip the relational store.  Both sides are
// written inside the same lock-held critical section, so they agree by
// the time the lock is released.  Cache failures degrade to the row and
// are logged, never surfaced.
type SlotStore struct {
	rows    SlotRepository
	counter CounterCache
	log     zerolog.Logger
}

// NewSlotStore returns a SlotStore over the given row and counter
// backends.  counter may be nil, which disables the fast path.
func NewSlotStore(rows SlotRepository, counter CounterCache, log zerolog.Logger) *SlotStore {
	return &SlotStore{rows: rows, counter: counter, log: log}
}

// Get returns the authoritative slot state.
func (s *SlotStore) Get(ctx context.Context, storeID uint64, date, slotTime string) (*model.Slot, error) {
	return s.rows.Get(ctx, storeID, date, slotTime)
}

// GetByID returns the authoritative slot state by primary key.
func (s *SlotStore) GetByID(ctx context.Context, slotID uint64) (*model.Slot, error) {
	return s.rows.GetByID(ctx, slotID)
}

// Available returns the slot's remaining capacity, serving from the
// counter when warm and lazily warming it from the row on a miss.  The
// counter is advisory; callers must still go through TryClaim, which
// consults the row, before relying on the number.
func (s *SlotStore) Available(ctx context.Context, storeID uint64, date, slotTime string) (int, error) {
	if s.counter != nil {
		n, ok, err := s.counter.Get(ctx, storeID, date, slotTime)
		if err != nil {
			s.log.Warn().Err(err).Uint64("store_id", storeID).Msg("slot counter read failed, falling back to row")
		} else if ok {
			return n, nil
		}
	}
	slot, err := s.rows.Get(ctx, storeID, date, slotTime)
	if err != nil {
		return 0, err
	}
	s.syncCounter(ctx, slot)
	return slot.Available, nil
}

// TryClaim decrements the slot by count and refreshes the counter.
// The caller must hold the slot's lock for the whole call.
func (s *SlotStore) TryClaim(ctx context.Context, storeID uint64, date, slotTime string, count int) (*model.Slot, error) {
	slot, err := s.rows.TryClaim(ctx, storeID, date, slotTime, count)
	if err != nil {
		return nil, err
	}
	s.syncCounter(ctx, slot)
	return slot, nil
}

// Release returns count units to the slot and refreshes the counter.
// The caller must hold the slot's lock for the whole call.
func (s *SlotStore) Release(ctx context.Context, storeID uint64, date, slotTime string, count int) (*model.Slot, error) {
	slot, err := s.rows.Release(ctx, storeID, date, slotTime, count)
	if err != nil {
		return nil, err
	}
	s.syncCounter(ctx, slot)
	return slot, nil
}

// ListByStoreDate returns every slot for a store on one date.
func (s *SlotStore) ListByStoreDate(ctx context.Context, storeID uint64, date string) ([]model.Slot, error) {
	return s.rows.ListByStoreDate(ctx, storeID, date)
}

// CreateBulk materializes a store's booking horizon up front.
func (s *SlotStore) CreateBulk(ctx context.Context, slots []model.Slot) error {
	return s.rows.CreateBulk(ctx, slots)
}

// syncCounter writes the row's available count through to the cache.
// On failure the stale key is dropped so the next read warms it from
// the row instead of serving a number the row no longer backs.
func (s *SlotStore) syncCounter(ctx context.Context, slot *model.Slot) {
	if s.counter == nil {
		return
	}
	if err := s.counter.Set(ctx, slot.StoreID, slot.Date, slot.Time, slot.Available); err != nil {
		s.log.Warn().Err(err).Uint64("slot_id", slot.ID).Msg("slot counter write failed, invalidating")
		if err := s.counter.Invalidate(ctx, slot.StoreID, slot.Date, slot.Time); err != nil {
			s.log.Error().Err(err).Uint64("slot_id", slot.ID).Msg("slot counter invalidate failed")
		}
	}
}
