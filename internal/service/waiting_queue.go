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

// StoreDirectory resolves store operating rules.  Satisfied by
// repository.StoreRepo.
type StoreDirectory interface {
	GetByID(ctx context.Context, storeID uint64) (*model.Store, error)
}

// WaitingQueue implements first-come-first-served registration for a
// store's live queue.  Registration runs entirely inside the store's
// queue lock so sequence numbers come out strictly increasing and
// gap-free; status transitions use conditional updates instead, since a
// lost race there only means the other writer's transition won.
type WaitingQueue struct {
	locker   lock.Locker
	stores   StoreDirectory
	entries  QueueRepository
	advancer *QueueAdvancer
	notifier NotificationSender
	log      zerolog.Logger

	lockWait  time.Duration
	lockLease time.Duration
	now       func() time.Time
}

// NewWaitingQueue wires a WaitingQueue.
func NewWaitingQueue(locker lock.Locker, stores StoreDirectory, entries QueueRepository, advancer *QueueAdvancer, notifier NotificationSender, log zerolog.Logger, lockWait, lockLease time.Duration) *WaitingQueue {
	return &WaitingQueue{
		locker:    locker,
		stores:    stores,
		entries:   entries,
		advancer:  advancer,
		notifier:  notifier,
		log:       log,
		lockWait:  lockWait,
		lockLease: lockLease,
		now:       time.Now,
	}
}

func queueLockName(storeID uint64) string {
	return fmt.Sprintf("queue:%d", storeID)
}

// Register appends the user to the store's queue and returns the new
// entry together with the number of parties ahead of it.
//
// Returns ErrQueueConflict on lock contention, ErrStoreNotOperating
// when the store is closed, ErrMaxQueueExceeded when the queue is at
// its configured bound, and ErrDuplicateEntry when the user already
// holds a non-terminal entry.
func (q *WaitingQueue) Register(ctx context.Context, storeID, userID uint64) (*model.QueueEntry, int, error) {
	name := queueLockName(storeID)
	token, ok, err := q.locker.TryAcquire(ctx, name, q.lockWait, q.lockLease)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		metrics.IncLockContention("queue")
		return nil, 0, ErrQueueConflict
	}
	defer func() {
		if err := q.locker.Release(context.WithoutCancel(ctx), name, token); err != nil {
			q.log.Error().Err(err).Str("lock", name).Msg("queue lock release failed")
		}
	}()

	store, err := q.stores.GetByID(ctx, storeID)
	if err != nil {
		return nil, 0, err
	}
	if !store.OpenAt(q.now()) {
		return nil, 0, ErrStoreNotOperating
	}

	active, err := q.entries.CountActive(ctx, storeID)
	if err != nil {
		return nil, 0, err
	}
	if active >= store.MaxQueueLength {
		return nil, 0, ErrMaxQueueExceeded
	}

	if _, err := q.entries.ActiveByUser(ctx, storeID, userID); err == nil {
		return nil, 0, ErrDuplicateEntry
	} else if !errors.Is(err, repository.ErrEntryNotFound) {
		return nil, 0, err
	}

	// Assigned inside the lock; two concurrent registrants can never
	// observe the same maximum.
	seq, err := q.entries.NextSequence(ctx, storeID)
	if err != nil {
		return nil, 0, err
	}

	entry := &model.QueueEntry{
		StoreID:        storeID,
		UserID:         userID,
		SequenceNumber: seq,
		Status:         model.QueueWaiting,
	}
	if err := q.entries.Create(ctx, entry); err != nil {
		return nil, 0, err
	}

	ahead, err := q.entries.CountAhead(ctx, storeID, seq)
	if err != nil {
		// The entry is committed; a failed ahead count only degrades
		// the first notification.
		q.log.Warn().Err(err).Uint64("entry_id", entry.ID).Msg("people-ahead count failed after registration")
		ahead = active
	}

	q.log.Info().Uint64("store_id", storeID).Uint64("entry_id", entry.ID).
		Uint64("sequence", seq).Int("people_ahead", ahead).Msg("queue entry registered")
	metrics.IncQueueRegistration("registered")
	q.notifier.Notify(ctx, userID, EventQueuePositionUpdated, queuePayload(entry, ahead))
	return entry, ahead, nil
}

// PeopleAhead returns how many non-terminal parties stand before the
// entry, recomputed fresh from the rows.
func (q *WaitingQueue) PeopleAhead(ctx context.Context, entry *model.QueueEntry) (int, error) {
	return q.entries.CountAhead(ctx, entry.StoreID, entry.SequenceNumber)
}

// EntryForUser returns the user's current non-terminal entry in the
// store's queue, or repository.ErrEntryNotFound.
func (q *WaitingQueue) EntryForUser(ctx context.Context, storeID, userID uint64) (*model.QueueEntry, error) {
	return q.entries.ActiveByUser(ctx, storeID, userID)
}

// UpdateStatus applies a staff-driven transition: WAITING to CALLED,
// CALLED to COMPLETED, or any non-terminal state to CANCELED.  The
// caller must own the store.  On success everyone behind the entry gets
// a fresh position update.
func (q *WaitingQueue) UpdateStatus(ctx context.Context, staffID, storeID, entryID uint64, to string) (*model.QueueEntry, error) {
	store, err := q.stores.GetByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if store.OwnerID != staffID {
		return nil, ErrUnauthorized
	}
	entry, err := q.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.StoreID != storeID {
		return nil, repository.ErrEntryNotFound
	}
	return q.transition(ctx, entry, to, false)
}

// Cancel is the entry owner's withdrawal path.  A CALLED entry cannot
// be canceled by its owner; only staff or the timeout scan may resolve
// it, and the guard holds even against a call landing concurrently
// with the cancel.
func (q *WaitingQueue) Cancel(ctx context.Context, userID, storeID, entryID uint64) error {
	entry, err := q.entries.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.StoreID != storeID {
		return repository.ErrEntryNotFound
	}
	if entry.UserID != userID {
		return ErrUnauthorized
	}
	if entry.Status == model.QueueCalled {
		return ErrCannotCancelCalled
	}
	_, err = q.transition(ctx, entry, model.QueueCanceled, false)
	if errors.Is(err, repository.ErrEntryNotFound) {
		// The entry moved between the guard's read and the write.  If
		// it moved to CALLED the guard's verdict applies.
		if fresh, ferr := q.entries.GetByID(ctx, entryID); ferr == nil && fresh.Status == model.QueueCalled {
			return ErrCannotCancelCalled
		}
	}
	return err
}

// CancelTimedOut resolves a CALLED entry that outstayed the call
// window.  Used only by the timeout scheduler; the conditional update
// makes the cancellation a no-op when staff completed the entry between
// the scan and this call.
func (q *WaitingQueue) CancelTimedOut(ctx context.Context, entry *model.QueueEntry) error {
	if entry.Status != model.QueueCalled {
		return ErrInvalidTransition
	}
	_, err := q.transition(ctx, entry, model.QueueCanceled, true)
	return err
}

// transition applies a single status change from the state the caller
// observed and fans out the resulting notifications.  The conditional
// update in the repository is keyed to that observed status, so a
// writer racing a concurrent transition loses with
// repository.ErrEntryNotFound instead of committing a move its guards
// never checked.
func (q *WaitingQueue) transition(ctx context.Context, observed *model.QueueEntry, to string, timedOut bool) (*model.QueueEntry, error) {
	if !model.ValidTransition(observed.Status, to) {
		return nil, ErrInvalidTransition
	}
	if err := q.entries.UpdateStatus(ctx, observed.ID, observed.Status, to); err != nil {
		return nil, err
	}
	entry := *observed
	entry.Status = to

	q.log.Info().Uint64("store_id", entry.StoreID).Uint64("entry_id", entry.ID).
		Str("from", observed.Status).Str("to", to).Bool("timed_out", timedOut).
		Msg("queue entry transitioned")
	metrics.IncQueueTransition(to)

	switch {
	case to == model.QueueCalled:
		q.notifier.Notify(ctx, entry.UserID, EventQueueCalled, queueStatusPayload(&entry))
	case timedOut:
		q.notifier.Notify(ctx, entry.UserID, EventQueueTimeout, queueStatusPayload(&entry))
	case to == model.QueueCanceled:
		q.notifier.Notify(ctx, entry.UserID, EventQueueCanceled, queueStatusPayload(&entry))
	}
	q.advancer.RecomputeAndNotify(ctx, entry.StoreID, entry.SequenceNumber)
	return &entry, nil
}
