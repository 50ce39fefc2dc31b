package kv

import (
	"context"
	"errors"
	"time"
)

var ErrUnknownDriver = errors.New("unknown kv driver")

// Store is the coordination point shared by every request handler. Values are
// whole JSON documents; there are no transactions, so callers that need
// read-merge-write do it themselves and accept last-write-wins.
type Store interface {
	// Get returns the raw value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Close() error
}

func Open(ctx context.Context, driver, addr, password string, db int) (Store, error) {
	switch driver {
	case "redis":
		return OpenRedis(ctx, addr, password, db)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, ErrUnknownDriver
	}
}
