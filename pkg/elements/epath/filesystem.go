package epath

import (
	"context"
	"io"
)

// WriteMode selects how Create opens a file.
type WriteMode int

const (
	// Truncate creates the file or replaces its content.
	Truncate WriteMode = iota
	// Append adds to the end of the file, creating it if needed.
	Append
	// Exclusive creates the file and fails with ErrExist if it exists.
	Exclusive
)

// String returns the one-letter mode name used in logs and errors.
func (m WriteMode) String() string {
	switch m {
	case Truncate:
		return "w"
	case Append:
		return "a"
	case Exclusive:
		return "x"
	default:
		return "?"
	}
}

// Filesystem is a storage backend behind Path.
//
// Implementations receive the Path they operate on so results (glob
// matches, copy destinations) can be built on the same backend. They must
// be safe for concurrent use.
type Filesystem interface {
	// Name identifies the backend ("local", "proxy", "gcs").
	Name() string

	// Open opens p for reading.
	Open(ctx context.Context, p Path) (io.ReadSeekCloser, error)

	// Create opens p for writing. The parent directory must exist on
	// backends that have real directories.
	Create(ctx context.Context, p Path, mode WriteMode) (io.WriteCloser, error)

	// Glob returns sorted, de-duplicated descendants of p matching pattern.
	Glob(ctx context.Context, p Path, pattern string) ([]Path, error)

	Exists(ctx context.Context, p Path) (bool, error)
	IsFile(ctx context.Context, p Path) (bool, error)
	IsDir(ctx context.Context, p Path) (bool, error)

	// Mkdir creates p with parents; an existing directory is not an error.
	Mkdir(ctx context.Context, p Path) error

	// Remove deletes p. Non-recursive removal of a directory requires it
	// to be empty.
	Remove(ctx context.Context, p Path, recursive bool) error

	// Copy and Move fall back to the generic copier when dst is served by
	// another backend or when the backend cannot act natively.
	Copy(ctx context.Context, src, dst Path, recursive bool) error
	Move(ctx context.Context, src, dst Path, recursive bool) error

	// Size returns the size of a file in bytes.
	Size(ctx context.Context, p Path) (int64, error)

	// Absolute returns an absolute form of p.
	Absolute(p Path) (Path, error)
}

// sameBackend reports whether dst is served by fs.
func sameBackend(fs Filesystem, dst Path) bool {
	return dst.fs == fs
}
