// Package registry provides a generic, concurrency-safe name table.
//
// The checkpoint store keeps its registered saveables in a Registry and
// iterates them in key order:
//
//	saveables := registry.New[string, checkpoint.Saveable]()
//	saveables.Register("model", model)
//	for _, name := range registry.SortedKeys(saveables) {
//	    s, _ := saveables.Get(name)
//	    ...
//	}
//
// GetOrCreate lazily builds per-key state exactly once, which the disk
// cache uses for its per-entry locks:
//
//	mu := locks.GetOrCreate(hash, func() *sync.Mutex { return new(sync.Mutex) })
package registry
