// Package store keeps design snapshots between the session that hands a
// design off and the session that opens it.
//
// Entries live under the key "ar_design_<designId>" as codec payloads and
// expire after a maximum age. Expiry is decided when an entry is read;
// Sweep only reclaims space. A design id is written once: Put refuses to
// replace a live entry.
//
// Memory is confined to one process. SQLite shares entries with every
// process that opens the same database file.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/ggar"
	"github.com/gogpu/ggar/codec"
	"github.com/gogpu/ggar/design"
)

// KeyPrefix starts every storage key.
const KeyPrefix = "ar_design_"

// DefaultMaxAge is how long entries stay readable.
const DefaultMaxAge = 24 * time.Hour

var (
	// ErrNotFound is returned for missing or unreadable entries.
	ErrNotFound = errors.New("store: design not found")
	// ErrExpired is returned for entries older than the maximum age. It
	// wraps ErrNotFound, so expired entries are also "not found".
	ErrExpired = fmt.Errorf("%w: expired", ErrNotFound)
	// ErrExists is returned by Put when the id already has a live entry.
	ErrExists = errors.New("store: design already stored")
	// ErrInvalidID is returned for ids that are not storage safe.
	ErrInvalidID = errors.New("store: invalid design id")
)

// Store is an ephemeral snapshot store.
type Store interface {
	// Put stores s under id. id must equal s.ID.
	Put(ctx context.Context, id string, s *design.Snapshot) error
	// Get returns the snapshot stored under id. Errors wrap ErrNotFound
	// when the entry is missing, expired or corrupted.
	Get(ctx context.Context, id string) (*design.Snapshot, error)
	// Delete removes id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
	// Sweep removes every entry older than maxAge and returns how many were
	// removed. A non-positive maxAge means the store's own maximum age.
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
	Close() error
}

// Key returns the storage key for a design id.
func Key(id string) string {
	return KeyPrefix + id
}

// Option configures a store.
type Option func(*options)

type options struct {
	now    func() time.Time
	maxAge time.Duration
}

func defaultOptions() options {
	return options{now: time.Now, maxAge: DefaultMaxAge}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock sets the time source. Tests use it to age entries.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMaxAge sets how long entries stay readable. Non-positive values keep
// DefaultMaxAge.
func WithMaxAge(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maxAge = d
		}
	}
}

// expired reports whether an entry stored at storedAt is past maxAge.
// An entry exactly maxAge old is still live.
func expired(now, storedAt time.Time, maxAge time.Duration) bool {
	return now.Sub(storedAt) > maxAge
}

func encodeFor(id string, s *design.Snapshot) ([]byte, error) {
	if !codec.ValidID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if s == nil || s.ID != id {
		return nil, fmt.Errorf("store: snapshot id does not match %q", id)
	}
	return codec.Encode(s)
}

// decodeEntry decodes a stored payload. A payload that no longer decodes
// is reported as not found; the caller removes it.
func decodeEntry(id string, payload []byte) (*design.Snapshot, error) {
	s, err := codec.Decode(payload)
	if err != nil {
		ggar.Logger().Warn("store: dropping corrupted entry", "key", Key(id), "error", err)
		return nil, fmt.Errorf("%w: %s: corrupted entry", ErrNotFound, id)
	}
	if s.ID != id {
		ggar.Logger().Warn("store: dropping entry with mismatched id", "key", Key(id), "design_id", s.ID)
		return nil, fmt.Errorf("%w: %s: corrupted entry", ErrNotFound, id)
	}
	return s, nil
}
