package epath_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/randalmurphal/elements/pkg/elements/epath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roots returns one fresh directory per backend.
func roots(t *testing.T, env *testEnv) map[string]epath.Path {
	t.Helper()
	return map[string]epath.Path{
		"local": env.path(t, t.TempDir()),
		"proxy": env.path(t, "/cns/cell/"+t.Name()),
		"gcs":   env.path(t, "gs://bucket/"+t.Name()),
	}
}

func seedTree(t *testing.T, root epath.Path) epath.Path {
	t.Helper()
	src := root.Join("src")
	writeText(t, src.Join("a/b.txt"), "b")
	writeText(t, src.Join("top.txt"), "top")
	return src
}

func TestCrossCopy_AllBackendPairs(t *testing.T) {
	backends := []string{"local", "proxy", "gcs"}
	ctx := context.Background()

	for _, from := range backends {
		for _, to := range backends {
			t.Run(fmt.Sprintf("%s_to_%s", from, to), func(t *testing.T) {
				env := newTestEnv(t)
				r := roots(t, env)
				src := seedTree(t, r[from])

				t.Run("file", func(t *testing.T) {
					dst := r[to].Join("single.txt")
					require.NoError(t, r[to].Mkdir(ctx))
					require.NoError(t, src.Join("top.txt").Copy(ctx, dst, false))
					assert.Equal(t, "top", readText(t, dst))
				})

				t.Run("recursive into new destination", func(t *testing.T) {
					dst := r[to].Join("fresh")
					require.NoError(t, src.Copy(ctx, dst, true))
					assert.Equal(t, "b", readText(t, dst.Join("a/b.txt")))
					assert.Equal(t, "top", readText(t, dst.Join("top.txt")))
				})

				t.Run("recursive into existing destination nests", func(t *testing.T) {
					dst := r[to].Join("existing")
					require.NoError(t, dst.Mkdir(ctx))
					require.NoError(t, src.Copy(ctx, dst, true))

					assert.Equal(t, "b", readText(t, dst.Join("src/a/b.txt")))
					flat, err := dst.Join("a/b.txt").Exists(ctx)
					require.NoError(t, err)
					assert.False(t, flat)
				})
			})
		}
	}
}

func TestCrossCopy_FileRequired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	src := seedTree(t, env.path(t, t.TempDir()))

	err := src.Copy(ctx, env.path(t, "gs://bucket/x"), false)
	assert.ErrorIs(t, err, epath.ErrNotFile)

	err = src.Join("missing.txt").Copy(ctx, env.path(t, "gs://bucket/x"), false)
	assert.ErrorIs(t, err, epath.ErrNotFile)
}

func TestCrossMove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	src := seedTree(t, env.path(t, t.TempDir()))
	dst := env.path(t, "gs://bucket/moved")

	require.NoError(t, src.Move(ctx, dst, true))

	assert.Equal(t, "b", readText(t, dst.Join("a/b.txt")))
	exists, err := src.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRelative(t *testing.T) {
	env := newTestEnv(t)

	rel, ok := epath.Relative(env.path(t, "gs://bucket/a"), env.path(t, "gs://bucket/a/b/c"))
	assert.True(t, ok)
	assert.Equal(t, "b/c", rel)

	rel, ok = epath.Relative(env.path(t, "."), env.path(t, "x/y"))
	assert.True(t, ok)
	assert.Equal(t, "x/y", rel)

	_, ok = epath.Relative(env.path(t, "/a"), env.path(t, "/ab"))
	assert.False(t, ok)

	_, ok = epath.Relative(env.path(t, "/a"), env.path(t, "/a"))
	assert.False(t, ok)
}
