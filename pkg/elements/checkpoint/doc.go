// Package checkpoint saves and restores named state as snapshot directories
// on any epath backend.
//
// # Layout
//
//	<root>/
//	  latest                      name of the newest complete snapshot
//	  <timestamp>[-<step>]/
//	    <name><ext>               single payload
//	    <name>-0000<ext> ...      sharded payload
//	    done                      empty marker written last
//
// A snapshot is complete iff its done marker exists. The latest pointer is
// rewritten only after the marker, so readers never observe a partial
// snapshot through it.
//
// # Usage
//
//	ckpt := checkpoint.New(epath.MustNew("gs://bucket/run"), checkpoint.WithKeep(3))
//	ckpt.Register("model", checkpoint.NewValue(&weights))
//	ckpt.Register("trainer", checkpoint.Fields(&trainer, "Epoch", "LR"))
//
//	// Resume when a snapshot exists, otherwise write the initial one.
//	if _, err := ckpt.LoadOrSave(ctx); err != nil {
//	    return err
//	}
//	...
//	if _, err := ckpt.Save(ctx, epath.Path{}); err != nil {
//	    return err
//	}
//
// Saveables that are too large to encode at once return a Shards sequence
// from Save; Load then receives a Payload whose shards are read one at a
// time as they are decoded.
//
// A Catalog (NewMemoryCatalog, NewSQLiteCatalog) can index committed
// snapshots. It is updated on commit and on retention but never consulted
// for correctness.
package checkpoint
