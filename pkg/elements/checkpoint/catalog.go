package checkpoint

import (
	"context"
	"time"
)

// Catalog indexes committed snapshots so they can be listed without
// walking the storage backend. It is never authoritative: a snapshot is
// complete iff its done marker exists.
// Implementations must be safe for concurrent use.
type Catalog interface {
	// Record adds or replaces the entry for (info.Root, info.Name).
	Record(ctx context.Context, info SnapshotInfo) error

	// Forget removes an entry. Missing entries are not an error.
	Forget(ctx context.Context, root, name string) error

	// List returns the entries for root ordered by name, which is
	// chronological for derived snapshots. An unknown root yields an
	// empty slice.
	List(ctx context.Context, root string) ([]SnapshotInfo, error)

	// Close releases any resources (connections, files).
	Close() error
}

// SnapshotInfo describes one committed snapshot.
type SnapshotInfo struct {
	Root      string
	Name      string
	Step      int64 // -1 without a step counter
	Keys      []string
	Size      int64
	CreatedAt time.Time
}
