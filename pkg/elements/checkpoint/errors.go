package checkpoint

import (
	"errors"
	"fmt"
)

// Sentinel errors for checkpoint operations.
var (
	// ErrNoCheckpoint indicates no complete snapshot could be resolved.
	ErrNoCheckpoint = errors.New("no checkpoint found")

	// ErrKeyNotFound indicates a requested key is not registered or is
	// absent from the snapshot.
	ErrKeyNotFound = errors.New("checkpoint key not found")

	// ErrInvalidName indicates a saveable name that cannot be registered.
	ErrInvalidName = errors.New("invalid saveable name")

	// ErrNotSaveable indicates a value without usable Save and Load methods.
	ErrNotSaveable = errors.New("value is not saveable")

	// ErrTooManyShards indicates a sharded payload exceeded MaxShards.
	ErrTooManyShards = errors.New("too many shards")

	// ErrNoRoot indicates an operation needed a root directory but the
	// store was created without one.
	ErrNoRoot = errors.New("checkpoint store has no root directory")

	// ErrSharded indicates Decode was called on a sharded payload.
	ErrSharded = errors.New("payload is sharded")

	// ErrCatalogClosed indicates the catalog has been closed.
	ErrCatalogClosed = errors.New("snapshot catalog closed")
)

// KeyError records a failure while saving or loading one saveable.
type KeyError struct {
	Key string
	Op  string
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("checkpoint %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}
