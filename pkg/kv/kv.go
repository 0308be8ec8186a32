// Package kv provides the key-value store behind users, sessions and job
// results. Keys are string paths such as {"token", "abc"}, encoded with a
// separator (default ':'). Entries may expire.
//
// Badger backs production deployments; Memory serves tests and the
// "memory" store setting.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("kv: not found")
)

// Key is a path of string segments, such as {"job", voucher}. Segments must
// not contain the store's separator.
type Key []string

// String joins the segments with ':'. Use it for logs only.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is a key-value pair returned by List.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with path-based keys. Expired entries behave as
// if they were deleted.
type Store interface {
	// Get returns ErrNotFound if the key is absent or expired.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores value without expiry, overwriting any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// SetWithTTL stores value until ttl elapses. A ttl <= 0 means no expiry.
	SetWithTTL(ctx context.Context, key Key, value []byte, ttl time.Duration) error

	// Delete removes a key. No error if the key does not exist.
	Delete(ctx context.Context, key Key) error

	// List iterates over the live entries under prefix in lexicographic
	// order of the encoded key.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchDelete removes several keys at once.
	BatchDelete(ctx context.Context, keys []Key) error

	Close() error
}

// DefaultSeparator joins key segments when Options.Separator is zero.
const DefaultSeparator byte = ':'

// Options configures how keys are laid out in the store.
type Options struct {
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

func (o *Options) encode(k Key) []byte {
	return []byte(strings.Join(k, string([]byte{o.sep()})))
}

func (o *Options) decode(b []byte) Key {
	return Key(strings.Split(string(b), string([]byte{o.sep()})))
}
