package epath

import (
	"errors"
	"io/fs"
)

// Sentinel errors for path operations.
var (
	// ErrNoFilesystem indicates no registry entry matched a path string.
	ErrNoFilesystem = errors.New("no filesystem supports path")

	// ErrNotExist indicates the path does not exist.
	ErrNotExist = fs.ErrNotExist

	// ErrExist indicates an exclusive create found an existing file.
	ErrExist = fs.ErrExist

	// ErrNotFile indicates an operation needed a regular file.
	ErrNotFile = errors.New("not a file")

	// ErrIsDirectory indicates a file operation was applied to a directory.
	ErrIsDirectory = errors.New("is a directory")

	// ErrNotDirectory indicates a recursive operation was applied to a file.
	ErrNotDirectory = errors.New("not a directory")

	// ErrDirectoryNotEmpty indicates a non-recursive remove of a populated directory.
	ErrDirectoryNotEmpty = errors.New("directory not empty")

	// ErrNoBucket indicates the object store bucket does not exist.
	ErrNoBucket = errors.New("bucket does not exist")
)

// PathError records an error and the operation and path that caused it.
type PathError struct {
	// Op is the operation that failed ("open", "copy", "remove", ...).
	Op string
	// Path is the path string the operation was applied to.
	Path string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *PathError) Unwrap() error {
	return e.Err
}

func pathErr(op string, p Path, err error) error {
	return &PathError{Op: op, Path: p.String(), Err: err}
}
