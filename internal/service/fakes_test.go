package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/devfloor/waitline/internal/model"
	"github.com/devfloor/waitline/internal/repository"
)

// Stateful in-memory doubles for the repository interfaces.  They
// mirror the conditional-update semantics of the SQL layer (guarded
// decrements, compare-and-set status transitions) so the concurrency
// properties exercised here are the same ones the real rows enforce.

type slotKey struct {
	storeID uint64
	date    string
	time    string
}

type memSlotRepo struct {
	mu     sync.Mutex
	nextID uint64
	slots  map[slotKey]*model.Slot
	byID   map[uint64]slotKey
}

func newMemSlotRepo() *memSlotRepo {
	return &memSlotRepo{slots: make(map[slotKey]*model.Slot), byID: make(map[uint64]slotKey)}
}

func (r *memSlotRepo) add(s model.Slot) *model.Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s.ID = r.nextID
	k := slotKey{s.StoreID, s.Date, s.Time}
	r.slots[k] = &s
	r.byID[s.ID] = k
	return &s
}

func (r *memSlotRepo) Get(_ context.Context, storeID uint64, date, slotTime string) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[slotKey{storeID, date, slotTime}]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSlotRepo) GetByID(_ context.Context, slotID uint64) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.byID[slotID]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	cp := *r.slots[k]
	return &cp, nil
}

func (r *memSlotRepo) TryClaim(_ context.Context, storeID uint64, date, slotTime string, count int) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[slotKey{storeID, date, slotTime}]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	if s.Status != model.SlotAvailable || s.Available < count {
		return nil, repository.ErrInsufficientCapacity
	}
	s.Available -= count
	if s.Available == 0 {
		s.Status = model.SlotFull
	}
	cp := *s
	return &cp, nil
}

func (r *memSlotRepo) Release(_ context.Context, storeID uint64, date, slotTime string, count int) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[slotKey{storeID, date, slotTime}]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	if s.Status != model.SlotAvailable && s.Status != model.SlotFull {
		return nil, repository.ErrSlotNotFound
	}
	s.Available += count
	if s.Available > s.Total {
		s.Available = s.Total
	}
	if s.Status == model.SlotFull {
		s.Status = model.SlotAvailable
	}
	cp := *s
	return &cp, nil
}

func (r *memSlotRepo) ListByStoreDate(_ context.Context, storeID uint64, date string) ([]model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Slot, 0)
	for k, s := range r.slots {
		if k.storeID == storeID && k.date == date {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (r *memSlotRepo) CreateBulk(_ context.Context, slots []model.Slot) error {
	for _, s := range slots {
		r.add(s)
	}
	return nil
}

type memCounter struct {
	mu   sync.Mutex
	vals map[slotKey]int
}

func newMemCounter() *memCounter { return &memCounter{vals: make(map[slotKey]int)} }

func (c *memCounter) Get(_ context.Context, storeID uint64, date, slotTime string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.vals[slotKey{storeID, date, slotTime}]
	return n, ok, nil
}

func (c *memCounter) Set(_ context.Context, storeID uint64, date, slotTime string, available int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals[slotKey{storeID, date, slotTime}] = available
	return nil
}

func (c *memCounter) Invalidate(_ context.Context, storeID uint64, date, slotTime string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.vals, slotKey{storeID, date, slotTime})
	return nil
}

type memReservationRepo struct {
	mu         sync.Mutex
	nextID     uint64
	rows       map[uint64]*model.Reservation
	failCreate error // when set, Create fails without writing
}

func newMemReservationRepo() *memReservationRepo {
	return &memReservationRepo{rows: make(map[uint64]*model.Reservation)}
}

func (r *memReservationRepo) Create(_ context.Context, v *model.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	r.nextID++
	v.ID = r.nextID
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	cp := *v
	r.rows[v.ID] = &cp
	return nil
}

func (r *memReservationRepo) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *memReservationRepo) Cancel(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.rows[id]
	if !ok || v.Status != model.ReservationConfirmed {
		return repository.ErrReservationNotFound
	}
	v.Status = model.ReservationCanceled
	v.UpdatedAt = time.Now()
	return nil
}

func (r *memReservationRepo) ListByUser(_ context.Context, userID uint64) ([]model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Reservation, 0)
	for _, v := range r.rows {
		if v.UserID == userID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type memQueueRepo struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]*model.QueueEntry
}

func newMemQueueRepo() *memQueueRepo { return &memQueueRepo{rows: make(map[uint64]*model.QueueEntry)} }

func (r *memQueueRepo) GetByID(_ context.Context, entryID uint64) (*model.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[entryID]
	if !ok {
		return nil, repository.ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memQueueRepo) NextSequence(_ context.Context, storeID uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var max uint64
	for _, e := range r.rows {
		if e.StoreID == storeID && e.SequenceNumber > max {
			max = e.SequenceNumber
		}
	}
	return max + 1, nil
}

func (r *memQueueRepo) Create(_ context.Context, e *model.QueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.StoreID == e.StoreID && existing.SequenceNumber == e.SequenceNumber {
			return errors.New("duplicate sequence number")
		}
	}
	r.nextID++
	e.ID = r.nextID
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	r.rows[e.ID] = &cp
	return nil
}

func (r *memQueueRepo) ActiveByUser(_ context.Context, storeID, userID uint64) (*model.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.rows {
		if e.StoreID == storeID && e.UserID == userID && !e.Terminal() {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrEntryNotFound
}

func (r *memQueueRepo) CountActive(_ context.Context, storeID uint64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.rows {
		if e.StoreID == storeID && !e.Terminal() {
			n++
		}
	}
	return n, nil
}

func (r *memQueueRepo) CountAhead(_ context.Context, storeID, sequence uint64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.rows {
		if e.StoreID == storeID && e.SequenceNumber < sequence && !e.Terminal() {
			n++
		}
	}
	return n, nil
}

func (r *memQueueRepo) ActiveAfter(_ context.Context, storeID, sequence uint64) ([]model.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.QueueEntry, 0)
	for _, e := range r.rows {
		if e.StoreID == storeID && e.SequenceNumber > sequence && !e.Terminal() {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

func (r *memQueueRepo) UpdateStatus(_ context.Context, entryID uint64, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[entryID]
	if !ok || e.Status != from {
		return repository.ErrEntryNotFound
	}
	e.Status = to
	e.UpdatedAt = time.Now()
	return nil
}

func (r *memQueueRepo) CalledBefore(_ context.Context, cutoff time.Time) ([]model.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.QueueEntry, 0)
	for _, e := range r.rows {
		if e.Status == model.QueueCalled && e.UpdatedAt.Before(cutoff) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

// setUpdatedAt backdates an entry's last status change, standing in for
// the passage of wall-clock time in timeout tests.
func (r *memQueueRepo) setUpdatedAt(entryID uint64, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[entryID].UpdatedAt = at
}

type memStoreDirectory struct {
	mu     sync.Mutex
	stores map[uint64]*model.Store
}

func newMemStoreDirectory(stores ...*model.Store) *memStoreDirectory {
	d := &memStoreDirectory{stores: make(map[uint64]*model.Store)}
	for _, s := range stores {
		d.stores[s.ID] = s
	}
	return d
}

func (d *memStoreDirectory) GetByID(_ context.Context, storeID uint64) (*model.Store, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.stores[storeID]
	if !ok {
		return nil, repository.ErrStoreNotFound
	}
	cp := *s
	return &cp, nil
}

type sentEvent struct {
	userID  uint64
	kind    string
	payload map[string]string
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (n *captureNotifier) Notify(_ context.Context, userID uint64, kind string, payload map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEvent{userID: userID, kind: kind, payload: payload})
}

func (n *captureNotifier) byKind(kind string) []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentEvent, 0)
	for _, e := range n.sent {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// openStore returns a store whose operating range and daily window
// cover any test instant.
func openStore(id, ownerID uint64, maxQueue int) *model.Store {
	return &model.Store{
		ID:             id,
		Name:           "test store",
		OwnerID:        ownerID,
		OperatingStart: time.Now().AddDate(0, 0, -1),
		OperatingEnd:   time.Now().AddDate(1, 0, 0),
		OpeningTime:    "00:00:00",
		ClosingTime:    "23:59:59",
		MaxQueueLength: maxQueue,
		IsActive:       true,
	}
}
