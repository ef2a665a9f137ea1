package diskcache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/elements/pkg/elements/codec"
	"github.com/randalmurphal/elements/pkg/elements/diskcache"
	"github.com/randalmurphal/elements/pkg/elements/epath"
)

type result struct {
	Sum   int
	Terms []int
}

func sumFill(calls *atomic.Int32, terms ...int) func(context.Context) (result, error) {
	return func(context.Context) (result, error) {
		calls.Add(1)
		r := result{Terms: terms}
		for _, t := range terms {
			r.Sum += t
		}
		return r, nil
	}
}

func TestGet_FillsOnceAndPersists(t *testing.T) {
	ctx := context.Background()
	root := epath.MustNew(t.TempDir())
	var calls atomic.Int32

	cache := diskcache.New[result](root, "sums")
	got, err := cache.Get(ctx, []int{1, 2, 3}, sumFill(&calls, 1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, result{Sum: 6, Terms: []int{1, 2, 3}}, got)

	got, err = cache.Get(ctx, []int{1, 2, 3}, sumFill(&calls, 1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 6, got.Sum)
	assert.Equal(t, int32(1), calls.Load())

	// A second cache over the same folder sees the entry.
	again := diskcache.New[result](root, "sums")
	_, err = again.Get(ctx, []int{1, 2, 3}, sumFill(&calls, 1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	files, err := cache.Folder().Glob(ctx, "*.gob")
	require.NoError(t, err)
	require.Len(t, files, 1)
	hash, _, err := diskcache.Key([]int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, hash+".gob", files[0].Name())
}

func TestKey_MapOrderIndependent(t *testing.T) {
	a, canonA, err := diskcache.Key(map[string]any{"lr": 0.1, "epochs": 3})
	require.NoError(t, err)
	b, canonB, err := diskcache.Key(map[string]any{"epochs": 3, "lr": 0.1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, canonA, canonB)
	assert.Len(t, a, 64)

	_, _, err = diskcache.Key(make(chan int))
	assert.Error(t, err)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	cache := diskcache.New[result](epath.MustNew(t.TempDir()), "sums")

	_, err := cache.Get(ctx, "k", sumFill(&calls, 1))
	require.NoError(t, err)
	got, err := cache.Refresh(ctx, "k", sumFill(&calls, 5))
	require.NoError(t, err)
	assert.Equal(t, 5, got.Sum)

	got, err = cache.Get(ctx, "k", sumFill(&calls, 9))
	require.NoError(t, err)
	assert.Equal(t, 5, got.Sum)
	assert.Equal(t, int32(2), calls.Load())

	always := diskcache.New[result](cache.Folder().Parent(), "sums", diskcache.WithRefresh(true))
	_, err = always.Get(ctx, "k", sumFill(&calls, 7))
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_FillError(t *testing.T) {
	ctx := context.Background()
	cache := diskcache.New[int](epath.MustNew(t.TempDir()), "broken")
	boom := errors.New("upstream unavailable")

	_, err := cache.Get(ctx, 1, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	ok, err := cache.Folder().Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGet_Collision(t *testing.T) {
	ctx := context.Background()
	cache := diskcache.New[int](epath.MustNew(t.TempDir()), "ints", diskcache.WithCodec(codec.JSON))
	_, err := cache.Get(ctx, "a", func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	// Move the entry for "a" to the name "b" hashes to.
	hashA, _, _ := diskcache.Key("a")
	hashB, _, _ := diskcache.Key("b")
	src := cache.Folder().Join(hashA + ".json")
	require.NoError(t, src.Move(ctx, cache.Folder().Join(hashB+".json"), false))

	_, err = cache.Get(ctx, "b", func(context.Context) (int, error) { return 2, nil })
	assert.ErrorIs(t, err, diskcache.ErrCollision)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	cache := diskcache.New[result](epath.MustNew(t.TempDir()), "sums")
	require.NoError(t, cache.Clear(ctx), "clearing an empty cache")

	for _, k := range []string{"a", "b", "c"} {
		_, err := cache.Get(ctx, k, sumFill(&calls, 1))
		require.NoError(t, err)
	}
	require.NoError(t, cache.Clear(ctx))
	files, err := cache.Folder().Glob(ctx, "*")
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = cache.Get(ctx, "a", sumFill(&calls, 1))
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load())
}

func TestWrap_ConcurrentSameInput(t *testing.T) {
	ctx := context.Background()
	objects := epath.NewMemoryObjectClient("cache")
	reg := epath.NewRegistry(epath.Entry{
		Name:  "gcs",
		Match: epath.HasPrefix(epath.GCSPrefix),
		FS:    epath.NewObjectStore(objects.Dial),
	})
	cache := diskcache.New[int](reg.MustParse("gs://cache/root"), "square")

	var calls atomic.Int32
	square := diskcache.Wrap(cache, func(_ context.Context, n int) (int, error) {
		calls.Add(1)
		return n * n, nil
	})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := square(ctx, 12)
			assert.NoError(t, err)
			assert.Equal(t, 144, v)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, objects.Keys("cache"), 2) // folder placeholder and entry
}
