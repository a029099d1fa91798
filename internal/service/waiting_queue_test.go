package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devfloor/waitline/internal/lock"
	"github.com/devfloor/waitline/internal/model"
	"github.com/devfloor/waitline/internal/repository"
)

func newTestQueue(stores *memStoreDirectory, entries *memQueueRepo, notifier *captureNotifier) *WaitingQueue {
	advancer := NewQueueAdvancer(entries, notifier, testLogger())
	return NewWaitingQueue(lock.NewLocalLocker(), stores, entries, advancer, notifier, testLogger(), testWait, testLease)
}

func TestRegisterMonotonicSequencing(t *testing.T) {
	const registrants = 50

	ctx := context.Background()
	entries := newMemQueueRepo()
	q := newTestQueue(newMemStoreDirectory(openStore(1, 99, registrants)), entries, &captureNotifier{})

	var wg sync.WaitGroup
	seqs := make(chan uint64, registrants)
	for i := 0; i < registrants; i++ {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			e, _, err := q.Register(ctx, 1, userID)
			if err != nil {
				t.Errorf("register user %d: %v", userID, err)
				return
			}
			seqs <- e.SequenceNumber
		}(uint64(i + 1))
	}
	wg.Wait()
	close(seqs)

	got := make([]uint64, 0, registrants)
	for s := range seqs {
		got = append(got, s)
	}
	require.Len(t, got, registrants)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, s := range got {
		assert.Equal(t, uint64(i+1), s, "sequence numbers must be exactly 1..N, no gaps, no duplicates")
	}
}

func TestRegisterAtMostOneActiveEntry(t *testing.T) {
	ctx := context.Background()
	entries := newMemQueueRepo()
	q := newTestQueue(newMemStoreDirectory(openStore(1, 99, 10)), entries, &captureNotifier{})

	first, _, err := q.Register(ctx, 1, 7)
	require.NoError(t, err)

	_, _, err = q.Register(ctx, 1, 7)
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	// Terminal entries free the user to register again.
	require.NoError(t, q.Cancel(ctx, 7, 1, first.ID))
	second, _, err := q.Register(ctx, 1, 7)
	require.NoError(t, err)
	assert.Greater(t, second.SequenceNumber, first.SequenceNumber, "sequence numbers are never reused")
}

func TestRegisterValidations(t *testing.T) {
	ctx := context.Background()

	t.Run("store not found", func(t *testing.T) {
		q := newTestQueue(newMemStoreDirectory(), newMemQueueRepo(), &captureNotifier{})
		_, _, err := q.Register(ctx, 1, 7)
		assert.ErrorIs(t, err, repository.ErrStoreNotFound)
	})

	t.Run("store closed", func(t *testing.T) {
		closed := openStore(1, 99, 10)
		closed.IsActive = false
		q := newTestQueue(newMemStoreDirectory(closed), newMemQueueRepo(), &captureNotifier{})
		_, _, err := q.Register(ctx, 1, 7)
		assert.ErrorIs(t, err, ErrStoreNotOperating)
	})

	t.Run("outside opening hours", func(t *testing.T) {
		late := openStore(1, 99, 10)
		late.OpeningTime = "00:00:00"
		late.ClosingTime = "00:00:01"
		q := newTestQueue(newMemStoreDirectory(late), newMemQueueRepo(), &captureNotifier{})
		q.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
		_, _, err := q.Register(ctx, 1, 7)
		assert.ErrorIs(t, err, ErrStoreNotOperating)
	})

	t.Run("queue full", func(t *testing.T) {
		entries := newMemQueueRepo()
		q := newTestQueue(newMemStoreDirectory(openStore(1, 99, 2)), entries, &captureNotifier{})
		_, _, err := q.Register(ctx, 1, 1)
		require.NoError(t, err)
		_, _, err = q.Register(ctx, 1, 2)
		require.NoError(t, err)
		_, _, err = q.Register(ctx, 1, 3)
		assert.ErrorIs(t, err, ErrMaxQueueExceeded)
	})
}

func TestRegisterReportsPeopleAhead(t *testing.T) {
	ctx := context.Background()
	entries := newMemQueueRepo()
	notifier := &captureNotifier{}
	q := newTestQueue(newMemStoreDirectory(openStore(1, 99, 10)), entries, notifier)

	for i := uint64(1); i <= 3; i++ {
		_, ahead, err := q.Register(ctx, 1, i)
		require.NoError(t, err)
		assert.Equal(t, int(i-1), ahead)
	}

	updates := notifier.byKind(EventQueuePositionUpdated)
	require.Len(t, updates, 3)
	assert.Equal(t, "0", updates[0].payload["people_ahead"])
	assert.Equal(t, "2", updates[2].payload["people_ahead"])
}

func TestStaffTransitions(t *testing.T) {
	ctx := context.Background()
	entries := newMemQueueRepo()
	notifier := &captureNotifier{}
	q := newTestQueue(newMemStoreDirectory(openStore(1, 99, 10)), entries, notifier)

	e, _, err := q.Register(ctx, 1, 7)
	require.NoError(t, err)

	// Only the store owner drives the queue.
	_, err = q.UpdateStatus(ctx, 42, 1, e.ID, model.QueueCalled)
	assert.ErrorIs(t, err, ErrUnauthorized)

	called, err := q.UpdateStatus(ctx, 99, 1, e.ID, model.QueueCalled)
	require.NoError(t, err)
	assert.Equal(t, model.QueueCalled, called.Status)
	assert.Len(t, notifier.byKind(EventQueueCalled), 1)

	// WAITING is behind us; the only legal moves are COMPLETED and
	// CANCELED.
	_, err = q.UpdateStatus(ctx, 99, 1, e.ID, model.QueueWaiting)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	done, err := q.UpdateStatus(ctx, 99, 1, e.ID, model.QueueCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.QueueCompleted, done.Status)

	// Terminal states never change again.
	_, err = q.UpdateStatus(ctx, 99, 1, e.ID, model.QueueCanceled)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOwnerCancelRules(t *testing.T) {
	ctx := context.Background()
	entries := newMemQueueRepo()
	q := newTestQueue(newMemStoreDirectory(openStore(1, 99, 10)), entries, &captureNotifier{})

	e, _, err := q.Register(ctx, 1, 7)
	require.NoError(t, err)

	// Someone else's entry.
	assert.ErrorIs(t, q.Cancel(ctx, 8, 1, e.ID), ErrUnauthorized)

	_, err = q.UpdateStatus(ctx, 99, 1, e.ID, model.QueueCalled)
	require.NoError(t, err)

	// A called party is staff's to resolve.
	assert.ErrorIs(t, q.Cancel(ctx, 7, 1, e.ID), ErrCannotCancelCalled)

	_, err = q.UpdateStatus(ctx, 99, 1, e.ID, model.QueueCanceled)
	require.NoError(t, err)
}

// callRacingRepo lands a staff WAITING to CALLED transition right
// after a read of the marked entry returns, so the reader's next
// conditional write races a fresher status.
type callRacingRepo struct {
	*memQueueRepo
	entryID uint64
	once    sync.Once
}

func (r *callRacingRepo) GetByID(ctx context.Context, entryID uint64) (*model.QueueEntry, error) {
	e, err := r.memQueueRepo.GetByID(ctx, entryID)
	if err == nil && entryID == r.entryID {
		r.once.Do(func() {
			_ = r.memQueueRepo.UpdateStatus(ctx, entryID, model.QueueWaiting, model.QueueCalled)
		})
	}
	return e, err
}

func TestOwnerCancelLosesToConcurrentCall(t *testing.T) {
	ctx := context.Background()
	entries := &callRacingRepo{memQueueRepo: newMemQueueRepo()}
	notifier := &captureNotifier{}
	advancer := NewQueueAdvancer(entries, notifier, testLogger())
	q := NewWaitingQueue(lock.NewLocalLocker(), newMemStoreDirectory(openStore(1, 99, 10)), entries, advancer, notifier, testLogger(), testWait, testLease)

	e, _, err := q.Register(ctx, 1, 7)
	require.NoError(t, err)
	entries.entryID = e.ID

	// The guard's read sees WAITING, the staff call lands, and the
	// cancel write must lose to the fresher status.
	assert.ErrorIs(t, q.Cancel(ctx, 7, 1, e.ID), ErrCannotCancelCalled)

	got, err := entries.memQueueRepo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueCalled, got.Status, "the called entry must survive the owner's cancel")
	assert.Empty(t, notifier.byKind(EventQueueCanceled))
}

func TestTransitionRecomputesAheadCounts(t *testing.T) {
	ctx := context.Background()
	entries := newMemQueueRepo()
	notifier := &captureNotifier{}
	q := newTestQueue(newMemStoreDirectory(openStore(1, 99, 10)), entries, notifier)

	var ids []uint64
	for i := uint64(1); i <= 4; i++ {
		e, _, err := q.Register(ctx, 1, i)
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	// Second party leaves; everyone behind moves up one.
	require.NoError(t, q.Cancel(ctx, 2, 1, ids[1]))

	for i, id := range ids {
		if i == 1 {
			continue
		}
		e, err := entries.GetByID(ctx, id)
		require.NoError(t, err)
		ahead, err := q.PeopleAhead(ctx, e)
		require.NoError(t, err)
		want := i
		if i > 1 {
			want = i - 1
		}
		assert.Equal(t, want, ahead, "entry %d", id)
	}

	// The cancellation fanned out fresh positions to entries 3 and 4.
	updates := notifier.byKind(EventQueuePositionUpdated)
	require.GreaterOrEqual(t, len(updates), 6, "4 registrations plus 2 recompute updates")
	last2 := updates[len(updates)-2:]
	assert.Equal(t, "1", last2[0].payload["people_ahead"])
	assert.Equal(t, "2", last2[1].payload["people_ahead"])
}

func TestRegisterLockContention(t *testing.T) {
	ctx := context.Background()
	locker := lock.NewLocalLocker()
	entries := newMemQueueRepo()
	advancer := NewQueueAdvancer(entries, &captureNotifier{}, testLogger())
	q := NewWaitingQueue(locker, newMemStoreDirectory(openStore(1, 99, 10)), entries, advancer, &captureNotifier{}, testLogger(), 30*time.Millisecond, testLease)

	tok, ok, err := locker.TryAcquire(ctx, queueLockName(1), 0, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	defer locker.Release(ctx, queueLockName(1), tok)

	_, _, err = q.Register(ctx, 1, 7)
	assert.ErrorIs(t, err, ErrQueueConflict)

	n, _ := entries.CountActive(ctx, 1)
	assert.Zero(t, n, "a failed acquisition must not create an entry")
}
