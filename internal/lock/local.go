package lock

import (
	"context"
	"sync"
	"time"
)

type localHold struct {
	token   string
	expires time.Time
}

// localPoll is deliberately short: in-process contention resolves in
// microseconds and tests hammer a single name from many goroutines.
const localPoll = 2 * time.Millisecond

// LocalLocker is an in-process Locker with the same wait and lease
// semantics as RedisLocker.  It only serializes callers inside one
// process, so it is suitable for tests and single-instance development
// runs, not for horizontally scaled deployments.
type LocalLocker struct {
	mu    sync.Mutex
	holds map[string]localHold
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{holds: make(map[string]localHold)}
}

// TryAcquire polls for the named lock until wait elapses.  Expired
// leases are evicted opportunistically on each attempt.
func (l *LocalLocker) TryAcquire(ctx context.Context, name string, wait, lease time.Duration) (string, bool, error) {
	deadline := time.Now().Add(wait)
	for {
		l.mu.Lock()
		h, held := l.holds[name]
		if held && time.Now().After(h.expires) {
			held = false
		}
		if !held {
			token := newToken()
			l.holds[name] = localHold{token: token, expires: time.Now().Add(lease)}
			l.mu.Unlock()
			return token, true, nil
		}
		l.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", false, nil
		}
		sleep := localPoll
		if remaining < sleep {
			sleep = remaining
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", false, ctx.Err()
		case <-timer.C:
		}
	}
}

// Release drops the hold only while it still carries the acquisition's
// token.  Unknown names and stale tokens are a no-op.
func (l *LocalLocker) Release(_ context.Context, name, token string) error {
	l.mu.Lock()
	if h, held := l.holds[name]; held && h.token == token && token != "" {
		delete(l.holds, name)
	}
	l.mu.Unlock()
	return nil
}
