// Package lock provides named, lease-based mutual exclusion shared by
// every instance of the service.  A lock name scopes one unit of
// contended state (one slot, one store queue, one scheduler run); all
// mutation of that state happens between a successful TryAcquire and the
// matching Release.  Leases bound the damage of a crashed holder: a lock
// that is never released expires on its own.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker is the mutual-exclusion contract used by the engines.
//
// TryAcquire blocks up to wait for the named lock and reports whether it
// was obtained.  A successful acquisition lasts at most lease, after
// which the lock self-expires even without Release, and yields a token
// identifying that one acquisition.  Release frees the lock only while
// it still carries the caller's token: releasing with a stale token
// (lease expired and the name re-acquired, possibly by this same
// process) or an empty one is a no-op, never an error.
type Locker interface {
	TryAcquire(ctx context.Context, name string, wait, lease time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, name, token string) error
}

// pollInterval is how often a blocked acquirer re-attempts the lock.
const pollInterval = 50 * time.Millisecond

// releaseScript deletes the lock key only when it still carries this
// holder's token, so an expired lock that was re-acquired by someone
// else is never released out from under them.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLocker implements Locker on a shared Redis instance using
// SET NX PX with a random holder token.  Every service instance that
// points at the same Redis serializes on the same names.
type RedisLocker struct {
	rdb *redis.Client
}

// NewRedisLocker returns a RedisLocker bound to the given client.
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

func lockKey(name string) string { return "lock:" + name }

func newToken() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// A broken CSPRNG is unrecoverable.
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}

// TryAcquire attempts SET NX with the lease as the key TTL, retrying on
// a short interval until wait elapses.  It returns ("", false, nil) on
// contention timeout and a non-nil error only for transport failures.
func (l *RedisLocker) TryAcquire(ctx context.Context, name string, wait, lease time.Duration) (string, bool, error) {
	token := newToken()
	key := lockKey(name)
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, lease).Result()
		if err != nil {
			return "", false, err
		}
		if ok {
			return token, true, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", false, nil
		}
		sleep := pollInterval
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

// Release deletes the lock if it still carries the acquisition's token.
// Releasing with an empty or stale token (already released, or
// lease-expired and re-acquired by anyone, this process included) is a
// no-op.
func (l *RedisLocker) Release(ctx context.Context, name, token string) error {
	if token == "" {
		return nil
	}
	return releaseScript.Run(ctx, l.rdb, []string{lockKey(name)}, token).Err()
}
