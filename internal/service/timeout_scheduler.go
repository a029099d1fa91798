package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/devfloor/waitline/internal/lock"
	"github.com/devfloor/waitline/internal/metrics"
	"github.com/devfloor/waitline/internal/repository"
)

// schedulerLockName serializes the timeout scan across every running
// instance of the service.
const schedulerLockName = "scheduler:queue-timeout"

// TimeoutScheduler repairs queues asynchronously: a CALLED party that
// never shows up is canceled after a fixed grace period, through the
// same transition path staff use, so the line keeps moving even when
// nobody touches the entry again.  Exactly one instance scans per tick;
// the others skip.
type TimeoutScheduler struct {
	locker  lock.Locker
	entries QueueRepository
	queue   *WaitingQueue
	log     zerolog.Logger

	interval      time.Duration
	calledTimeout time.Duration
	lockLease     time.Duration
	now           func() time.Time
}

// NewTimeoutScheduler wires a TimeoutScheduler.  interval is the tick
// period; calledTimeout is how long an entry may sit in CALLED before
// the scan cancels it.
func NewTimeoutScheduler(locker lock.Locker, entries QueueRepository, queue *WaitingQueue, log zerolog.Logger, interval, calledTimeout time.Duration) *TimeoutScheduler {
	return &TimeoutScheduler{
		locker:        locker,
		entries:       entries,
		queue:         queue,
		log:           log,
		interval:      interval,
		calledTimeout: calledTimeout,
		lockLease:     interval,
		now:           time.Now,
	}
}

// Run ticks until ctx is canceled.  Intended to be started in its own
// goroutine from main.
func (s *TimeoutScheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	s.log.Info().Dur("interval", s.interval).Dur("called_timeout", s.calledTimeout).
		Msg("queue timeout scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("queue timeout scheduler stopped")
			return
		case <-t.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single scan.  When another instance holds the
// scheduler lock the run is skipped silently; the next tick retries.
// Each expired entry is canceled independently, so a failure mid-scan
// leaves earlier cancellations committed.
func (s *TimeoutScheduler) RunOnce(ctx context.Context) {
	token, ok, err := s.locker.TryAcquire(ctx, schedulerLockName, 0, s.lockLease)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduler lock acquire failed")
		return
	}
	if !ok {
		s.log.Debug().Msg("scheduler lock held elsewhere, skipping scan")
		return
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), schedulerLockName, token); err != nil {
			s.log.Error().Err(err).Msg("scheduler lock release failed")
		}
	}()

	cutoff := s.now().Add(-s.calledTimeout)
	expired, err := s.entries.CalledBefore(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("timeout scan failed")
		return
	}
	for i := range expired {
		e := &expired[i]
		if err := s.queue.CancelTimedOut(ctx, e); err != nil {
			// A racing staff transition is expected; anything else is
			// worth a look.
			if errors.Is(err, repository.ErrEntryNotFound) || errors.Is(err, ErrInvalidTransition) {
				continue
			}
			s.log.Error().Err(err).Uint64("entry_id", e.ID).Msg("timeout cancel failed")
			continue
		}
		metrics.IncQueueTimeout()
		s.log.Info().Uint64("store_id", e.StoreID).Uint64("entry_id", e.ID).
			Uint64("sequence", e.SequenceNumber).Msg("called entry timed out")
	}
}
