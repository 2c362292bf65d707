// Package store provides key-value persistence for wallet and job records.
//
// The store itself makes no atomicity promises across Get/Put; callers that
// read-modify-write a record must serialize access to that key themselves.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for keys that have never been written.
var ErrNotFound = errors.New("record not found")

// Store is a pluggable record store. Records are JSON documents keyed by
// a namespaced string such as "wallet:<userId>" or "job:<jobId>".
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error

	// Keys returns all keys with the given prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
