package benchmarks

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/elements/pkg/elements/checkpoint"
	"github.com/randalmurphal/elements/pkg/elements/codec"
	"github.com/randalmurphal/elements/pkg/elements/epath"
)

// LargeState represents a larger state for realistic benchmarks.
type LargeState struct {
	ID       string
	Values   []int
	Metadata map[string]string
	Nested   struct {
		A string
		B int
		C []string
	}
}

// BenchmarkLocal_Save measures a derived save with retention on disk.
func BenchmarkLocal_Save(b *testing.B) {
	ckpt, _ := createCheckpoint(b, localRoot(b), checkpoint.WithKeep(3))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ckpt.Save(ctx, epath.Path{}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkLocal_Load measures loading the latest snapshot from disk.
func BenchmarkLocal_Load(b *testing.B) {
	ckpt, _ := createCheckpoint(b, localRoot(b))
	ctx := context.Background()
	if _, err := ckpt.Save(ctx, epath.Path{}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ckpt.Load(ctx, epath.Path{}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkObjectStore_Save measures a derived save against the in-memory
// object store.
func BenchmarkObjectStore_Save(b *testing.B) {
	ckpt, _ := createCheckpoint(b, objectRoot(b), checkpoint.WithKeep(3))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ckpt.Save(ctx, epath.Path{}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkObjectStore_Load measures loading from the in-memory object store.
func BenchmarkObjectStore_Load(b *testing.B) {
	ckpt, _ := createCheckpoint(b, objectRoot(b))
	ctx := context.Background()
	if _, err := ckpt.Save(ctx, epath.Path{}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ckpt.Load(ctx, epath.Path{}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSave_DryRun measures encoding without writes.
func BenchmarkSave_DryRun(b *testing.B) {
	ckpt, _ := createCheckpoint(b, localRoot(b), checkpoint.WithWrite(false))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ckpt.Save(ctx, epath.Path{}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSave_Codecs compares payload codecs on the same state.
func BenchmarkSave_Codecs(b *testing.B) {
	for _, cd := range []codec.Codec{codec.JSON, codec.YAML, codec.Gob} {
		b.Run(cd.Name(), func(b *testing.B) {
			ckpt, _ := createCheckpoint(b, localRoot(b), checkpoint.WithCodec(cd), checkpoint.WithKeep(1))
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := ckpt.Save(ctx, epath.Path{}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkMemoryCatalog_Record measures in-memory catalog updates.
func BenchmarkMemoryCatalog_Record(b *testing.B) {
	catalog := checkpoint.NewMemoryCatalog()
	defer catalog.Close()
	benchmarkRecord(b, catalog)
}

// BenchmarkSQLiteCatalog_Record measures SQLite catalog updates.
func BenchmarkSQLiteCatalog_Record(b *testing.B) {
	catalog, err := checkpoint.NewSQLiteCatalog(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer catalog.Close()
	benchmarkRecord(b, catalog)
}

// BenchmarkSQLiteCatalog_List measures listing a populated root.
func BenchmarkSQLiteCatalog_List(b *testing.B) {
	catalog, err := checkpoint.NewSQLiteCatalog(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer catalog.Close()

	ctx := context.Background()
	for i := range 100 {
		if err := catalog.Record(ctx, snapshotInfo(i)); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = catalog.List(ctx, "bench")
	}
}

// Helper functions

func benchmarkRecord(b *testing.B, catalog checkpoint.Catalog) {
	b.Helper()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = catalog.Record(ctx, snapshotInfo(i%100))
	}
}

func snapshotInfo(i int) checkpoint.SnapshotInfo {
	return checkpoint.SnapshotInfo{
		Root:      "bench",
		Name:      fmt.Sprintf("snapshot-%03d", i),
		Step:      int64(i),
		Keys:      []string{"model", "state"},
		Size:      4096,
		CreatedAt: time.Now(),
	}
}

func createLargeState() LargeState {
	return LargeState{
		ID:     "test-id",
		Values: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		Metadata: map[string]string{
			"key1": "value1",
			"key2": "value2",
			"key3": "value3",
		},
		Nested: struct {
			A string
			B int
			C []string
		}{
			A: "nested-a",
			B: 42,
			C: []string{"c1", "c2", "c3"},
		},
	}
}

// createCheckpoint registers a LargeState and a sharded weight table.
func createCheckpoint(b *testing.B, root epath.Path, opts ...checkpoint.Option) (*checkpoint.Checkpoint, *LargeState) {
	b.Helper()
	state := createLargeState()
	weights := make([][]float64, 8)
	for i := range weights {
		weights[i] = make([]float64, 256)
	}

	ckpt := checkpoint.New(root, opts...)
	if err := ckpt.Register("state", checkpoint.NewValue(&state)); err != nil {
		b.Fatal(err)
	}
	err := ckpt.Register("weights", checkpoint.Funcs{
		SaveFunc: func(context.Context) (any, error) {
			return checkpoint.ShardsOf(weights...), nil
		},
		LoadFunc: func(ctx context.Context, p checkpoint.Payload) error {
			i := 0
			for w, err := range checkpoint.ShardValues[[]float64](ctx, p) {
				if err != nil {
					return err
				}
				weights[i] = w
				i++
			}
			return nil
		},
	})
	if err != nil {
		b.Fatal(err)
	}
	return ckpt, &state
}

func localRoot(b *testing.B) epath.Path {
	b.Helper()
	return epath.MustNew(b.TempDir()).Join("ckpt")
}

func objectRoot(b *testing.B) epath.Path {
	b.Helper()
	client := epath.NewMemoryObjectClient("bench")
	reg := epath.NewRegistry(
		epath.Entry{Name: "gcs", Match: epath.HasPrefix(epath.GCSPrefix), FS: epath.NewObjectStore(client.Dial)},
	)
	b.Cleanup(func() { _ = reg.Close() })
	return reg.MustParse("gs://bench/ckpt")
}
