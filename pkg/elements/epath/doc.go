// Package epath provides one path API over local disks, a distributed
// filesystem gateway and a cloud object store.
//
// A Path is an immutable value: a normalized string tagged with the
// Filesystem that serves it. The Filesystem is chosen once, when the string
// is parsed, by walking an ordered table of (predicate, Filesystem) entries:
//
//	gs://bucket/key   -> ObjectStore (Google Cloud Storage)
//	/cns/...          -> Proxy (gateway to a distributed filesystem)
//	anything else     -> Local
//
// Joining and the other string helpers never re-dispatch, so a Path keeps
// its backend for its whole life:
//
//	root := epath.MustNew("gs://my-bucket/runs")
//	file := root.Join("exp1", "metrics.jsonl")
//	if err := file.Write(ctx, line, epath.Append); err != nil {
//	    return err
//	}
//
// Copies and moves between different backends, and recursive copies that a
// backend cannot do natively, go through a generic copier that walks the
// source tree and re-streams bytes through Open and Create.
//
// # Object store semantics
//
// The object store has no directories. A directory exists when a zero-byte
// placeholder object named "<prefix>/" exists or when any object lives below
// the prefix. Appends are emulated by uploading a temporary object and
// composing it onto the target once both objects are visible. Every mutating
// call carries an explicit RetryPolicy with a bounded deadline.
//
// # Concurrency
//
// All operations block on I/O in the calling goroutine. Backends are safe
// for concurrent use; the object store's client and bucket tables are
// lazily initialized under a lock with a re-check after acquisition.
package epath
