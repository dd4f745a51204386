package dedupe

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable reports that the presence store could not answer.
// Callers must not treat it as "key absent".
var ErrStoreUnavailable = errors.New("presence store unavailable")

// PresenceStore is the key-value store behind the dedup filter. Values carry
// no payload; only presence and expiry matter.
type PresenceStore interface {
	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)
	// Set writes key with the given time-to-live, replacing any previous TTL.
	Set(ctx context.Context, key string, ttl time.Duration) error
	// Incr increments a counter at key and returns the new value. The TTL
	// is applied when the counter is created.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
}
