package registry

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterGetReplace(t *testing.T) {
	r := New[string, int]()
	assert.Equal(t, 0, r.Len())

	r.Register("model", 1)
	r.Register("optimizer", 2)
	r.Register("model", 3)

	v, ok := r.Get("model")
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, r.Len())

	v, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestHasAndDelete(t *testing.T) {
	r := New[string, string]()
	r.Register("step", "counter")

	assert.True(t, r.Has("step"))
	assert.True(t, r.Delete("step"))
	assert.False(t, r.Has("step"))
	assert.False(t, r.Delete("step"))
}

func TestSnapshotIsDetached(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)

	snap := r.Snapshot()
	r.Register("b", 2)
	snap["c"] = 3

	assert.Equal(t, 1, snap["a"])
	assert.NotContains(t, snap, "b")
	assert.Len(t, snap, 2)
	assert.False(t, r.Has("c"))
}

func TestSortedKeys(t *testing.T) {
	r := New[string, bool]()
	for _, k := range []string{"optimizer", "dataset", "model", "step"} {
		r.Register(k, true)
	}
	assert.Equal(t, []string{"dataset", "model", "optimizer", "step"}, SortedKeys(r))

	assert.Empty(t, SortedKeys(New[int, int]()))
}

func TestGetOrCreateRunsOncePerKey(t *testing.T) {
	r := New[string, *sync.Mutex]()
	var calls atomic.Int32
	create := func() *sync.Mutex {
		calls.Add(1)
		return new(sync.Mutex)
	}

	var wg sync.WaitGroup
	results := make([]*sync.Mutex, 64)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.GetOrCreate("entry", create)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, m := range results {
		assert.Same(t, results[0], m)
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := New[int, int]()
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register(i, i*2)
		}()
		go func() {
			defer wg.Done()
			_, _ = r.Get(i)
			_ = SortedKeys(r)
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, r.Len())
	keys := SortedKeys(r)
	assert.Equal(t, 0, keys[0])
	assert.Equal(t, 99, keys[99])
}
