package checkpoint_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/elements/pkg/elements/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// catalogFactory creates a catalog instance for testing.
type catalogFactory func(t *testing.T) checkpoint.Catalog

func snapshotInfo(root, name string, step int64) checkpoint.SnapshotInfo {
	return checkpoint.SnapshotInfo{
		Root:      root,
		Name:      name,
		Step:      step,
		Keys:      []string{"model", "optimizer"},
		Size:      128,
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// catalogContractTest runs contract tests against any Catalog implementation.
func catalogContractTest(t *testing.T, name string, factory catalogFactory) {
	ctx := context.Background()

	t.Run(name+"/Record_and_List", func(t *testing.T) {
		cat := factory(t)
		defer cat.Close()

		info := snapshotInfo("/ckpt", "20240301T120000F000-000000000010", 10)
		require.NoError(t, cat.Record(ctx, info))

		infos, err := cat.List(ctx, "/ckpt")
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, info.Name, infos[0].Name)
		assert.Equal(t, int64(10), infos[0].Step)
		assert.Equal(t, []string{"model", "optimizer"}, infos[0].Keys)
		assert.Equal(t, int64(128), infos[0].Size)
		assert.True(t, info.CreatedAt.Equal(infos[0].CreatedAt))
	})

	t.Run(name+"/List_UnknownRoot", func(t *testing.T) {
		cat := factory(t)
		defer cat.Close()

		infos, err := cat.List(ctx, "gs://nowhere")
		require.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run(name+"/Record_Replaces", func(t *testing.T) {
		cat := factory(t)
		defer cat.Close()

		info := snapshotInfo("/ckpt", "a", -1)
		require.NoError(t, cat.Record(ctx, info))
		info.Size = 512
		info.Keys = []string{"model"}
		require.NoError(t, cat.Record(ctx, info))

		infos, err := cat.List(ctx, "/ckpt")
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, int64(512), infos[0].Size)
		assert.Equal(t, []string{"model"}, infos[0].Keys)
	})

	t.Run(name+"/List_OrderedByName", func(t *testing.T) {
		cat := factory(t)
		defer cat.Close()

		for _, n := range []string{"20240103T000000F000", "20240101T000000F000", "20240102T000000F000"} {
			require.NoError(t, cat.Record(ctx, snapshotInfo("/ckpt", n, -1)))
		}
		infos, err := cat.List(ctx, "/ckpt")
		require.NoError(t, err)
		var names []string
		for _, info := range infos {
			names = append(names, info.Name)
		}
		assert.Equal(t, []string{"20240101T000000F000", "20240102T000000F000", "20240103T000000F000"}, names)
	})

	t.Run(name+"/Roots_Isolated", func(t *testing.T) {
		cat := factory(t)
		defer cat.Close()

		require.NoError(t, cat.Record(ctx, snapshotInfo("/a", "s1", -1)))
		require.NoError(t, cat.Record(ctx, snapshotInfo("gs://b/c", "s1", -1)))
		require.NoError(t, cat.Forget(ctx, "/a", "s1"))

		infos, err := cat.List(ctx, "/a")
		require.NoError(t, err)
		assert.Empty(t, infos)
		infos, err = cat.List(ctx, "gs://b/c")
		require.NoError(t, err)
		assert.Len(t, infos, 1)
	})

	t.Run(name+"/Forget_Missing", func(t *testing.T) {
		cat := factory(t)
		defer cat.Close()

		assert.NoError(t, cat.Forget(ctx, "/ckpt", "never-recorded"))
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		cat := factory(t)
		require.NoError(t, cat.Close())

		assert.ErrorIs(t, cat.Record(ctx, snapshotInfo("/ckpt", "a", -1)), checkpoint.ErrCatalogClosed)
		assert.ErrorIs(t, cat.Forget(ctx, "/ckpt", "a"), checkpoint.ErrCatalogClosed)
		_, err := cat.List(ctx, "/ckpt")
		assert.ErrorIs(t, err, checkpoint.ErrCatalogClosed)
		assert.NoError(t, cat.Close())
	})

	t.Run(name+"/Concurrent", func(t *testing.T) {
		cat := factory(t)
		defer cat.Close()

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				info := snapshotInfo("/ckpt", fmt.Sprintf("snapshot-%02d", i), int64(i))
				assert.NoError(t, cat.Record(ctx, info))
			}()
		}
		wg.Wait()

		infos, err := cat.List(ctx, "/ckpt")
		require.NoError(t, err)
		assert.Len(t, infos, 20)
	})
}

func TestMemoryCatalog(t *testing.T) {
	catalogContractTest(t, "Memory", func(t *testing.T) checkpoint.Catalog {
		return checkpoint.NewMemoryCatalog()
	})
}

func TestSQLiteCatalog(t *testing.T) {
	catalogContractTest(t, "SQLite", func(t *testing.T) checkpoint.Catalog {
		cat, err := checkpoint.NewSQLiteCatalog(filepath.Join(t.TempDir(), "snapshots.db"))
		require.NoError(t, err)
		return cat
	})
}

func TestSQLiteCatalog_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshots.db")

	cat, err := checkpoint.NewSQLiteCatalog(path)
	require.NoError(t, err)
	require.NoError(t, cat.Record(ctx, snapshotInfo("/ckpt", "s1", 3)))
	require.NoError(t, cat.Close())

	reopened, err := checkpoint.NewSQLiteCatalog(path)
	require.NoError(t, err)
	defer reopened.Close()

	infos, err := reopened.List(ctx, "/ckpt")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, int64(3), infos[0].Step)
}

func TestMemoryCatalog_Len(t *testing.T) {
	ctx := context.Background()
	cat := checkpoint.NewMemoryCatalog()
	require.NoError(t, cat.Record(ctx, snapshotInfo("/a", "s1", -1)))
	require.NoError(t, cat.Record(ctx, snapshotInfo("/b", "s1", -1)))
	assert.Equal(t, 2, cat.Len())
}
