// Package cache provides the fast membership layer in front of the durable
// store: the authorized-user set queried on every inbound message, and the
// per-user flood guard for repeated authorization requests.
//
// Both capabilities are defined as small interfaces so the backing technology
// is injected, not assumed. The production implementation is Redis
// (redis.go); memory.go provides an in-process fallback with the same
// semantics for development and tests. The membership set is a rebuildable
// projection of the store: it is cleared and repopulated at startup and kept
// in sync by the authorization state machine afterwards.
package cache

import (
	"context"
	"time"
)

// Membership is the authorized-user set.
type Membership interface {
	// Contains reports whether the user id is in the set.
	Contains(ctx context.Context, id int64) (bool, error)

	// Add inserts the user id into the set.
	Add(ctx context.Context, id int64) error

	// Remove deletes the user id from the set.
	Remove(ctx context.Context, id int64) error

	// Clear empties the set, ahead of a rebuild from the store.
	Clear(ctx context.Context) error
}

// FloodGuard suppresses repeated requests from one user for a time window.
type FloodGuard interface {
	// Hit reports whether the user is currently guarded, and arms the guard
	// for ttl when it is not. The first call in a window returns false and
	// arms; subsequent calls within ttl return true.
	Hit(ctx context.Context, id int64, ttl time.Duration) (bool, error)
}
