// Package kv abstracts the key-value store and pub/sub channel shared across
// server instances. Any store offering get, set-with-ttl, delete-by-prefix
// and publish/subscribe is substitutable; Redis backs production, the
// in-memory implementation backs tests and degraded mode.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key is absent or expired.
var ErrNotFound = errors.New("key not found")

// Store is the key-value surface of the cache backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePrefix removes every key with the given prefix and returns
	// how many were deleted.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Broker is the shared broadcast channel between server instances.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription is a live feed of broadcast payloads. Messages closes when
// the subscription does.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}
