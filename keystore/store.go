// Package keystore persists key-share records and exposes them to jobs as
// a read-only, scannable view.
package keystore

import (
	"errors"

	"github.com/f3rmion/keyserver/keyshare"
)

// ErrNotFound is returned when a session has no record.
var ErrNotFound = errors.New("keystore: session not found")

// ErrExists is returned by Insert when the session already has a record.
var ErrExists = errors.New("keystore: session already exists")

// View is the read-only surface jobs consume.
//
// Iterate calls fn once per stored session in ascending SessionID order,
// against a single consistent snapshot. Iteration stops at the first
// error from fn or from the store, and that error is returned.
type View interface {
	Iterate(fn func(id keyshare.SessionID, rec *keyshare.Record) error) error
}

// Store is the full key-share storage used by the node.
type Store interface {
	View

	// Get returns the record of a session or ErrNotFound.
	Get(id keyshare.SessionID) (*keyshare.Record, error)
	// Insert stores a new session record or fails with ErrExists.
	Insert(id keyshare.SessionID, rec *keyshare.Record) error
	// Update overwrites an existing record or fails with ErrNotFound.
	Update(id keyshare.SessionID, rec *keyshare.Record) error
	// Delete removes a record or fails with ErrNotFound.
	Delete(id keyshare.SessionID) error
	// Close releases the store.
	Close() error
}
