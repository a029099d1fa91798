package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/devfloor/waitline/internal/model"
)

// QueueRepository is the durable queue state.  Satisfied by
// repository.QueueRepo.
type QueueRepository interface {
	GetByID(ctx context.Context, entryID uint64) (*model.QueueEntry, error)
	NextSequence(ctx context.Context, storeID uint64) (uint64, error)
	Create(ctx context.Context, e *model.QueueEntry) error
	ActiveByUser(ctx context.Context, storeID, userID uint64) (*model.QueueEntry, error)
	CountActive(ctx context.Context, storeID uint64) (int, error)
	CountAhead(ctx context.Context, storeID, sequence uint64) (int, error)
	ActiveAfter(ctx context.Context, storeID, sequence uint64) ([]model.QueueEntry, error)
	UpdateStatus(ctx context.Context, entryID uint64, from, to string) error
	CalledBefore(ctx context.Context, cutoff time.Time) ([]model.QueueEntry, error)
}

// QueueAdvancer pushes fresh position updates to everyone behind an
// entry whose status just changed.  Each party's people-ahead count is
// recomputed from the rows at notification time, never carried over
// from an earlier read, so a burst of transitions cannot leave a stale
// rank in flight.
type QueueAdvancer struct {
	entries  QueueRepository
	notifier NotificationSender
	log      zerolog.Logger
}

// NewQueueAdvancer returns a QueueAdvancer over the given backends.
func NewQueueAdvancer(entries QueueRepository, notifier NotificationSender, log zerolog.Logger) *QueueAdvancer {
	return &QueueAdvancer{entries: entries, notifier: notifier, log: log}
}

// RecomputeAndNotify walks the non-terminal entries behind fromSequence
// in ascending order and emits a position update for each.  Work is
// O(queue depth), bounded by the store's maximum queue length.  Errors
// are logged per entry and do not stop the walk; a missed update is
// repaired by the next transition.
func (a *QueueAdvancer) RecomputeAndNotify(ctx context.Context, storeID, fromSequence uint64) {
	behind, err := a.entries.ActiveAfter(ctx, storeID, fromSequence)
	if err != nil {
		a.log.Error().Err(err).Uint64("store_id", storeID).Msg("queue recompute scan failed")
		return
	}
	for i := range behind {
		e := &behind[i]
		ahead, err := a.entries.CountAhead(ctx, storeID, e.SequenceNumber)
		if err != nil {
			a.log.Error().Err(err).Uint64("entry_id", e.ID).Msg("people-ahead recompute failed")
			continue
		}
		a.notifier.Notify(ctx, e.UserID, EventQueuePositionUpdated, queuePayload(e, ahead))
	}
}
