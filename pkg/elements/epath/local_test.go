package epath_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/elements/pkg/elements/epath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_WriteModes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.path(t, filepath.Join(t.TempDir(), "log.txt"))

	require.NoError(t, p.Write(ctx, []byte("a"), epath.Truncate))
	require.NoError(t, p.Write(ctx, []byte("b"), epath.Append))
	assert.Equal(t, "ab", readText(t, p))

	require.NoError(t, p.Write(ctx, []byte("c"), epath.Truncate))
	assert.Equal(t, "c", readText(t, p))

	err := p.Write(ctx, []byte("d"), epath.Exclusive)
	assert.ErrorIs(t, err, epath.ErrExist)
	assert.Equal(t, "c", readText(t, p))
}

func TestLocal_Kinds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.path(t, t.TempDir())
	dir := root.Join("d")
	file := dir.Join("f.txt")
	writeText(t, file, "hello")

	tests := []struct {
		p                      epath.Path
		exists, isFile, isDir bool
	}{
		{dir, true, false, true},
		{file, true, true, false},
		{root.Join("missing"), false, false, false},
		{file.Join("below-file"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.p.Name(), func(t *testing.T) {
			exists, err := tt.p.Exists(ctx)
			require.NoError(t, err)
			isFile, err := tt.p.IsFile(ctx)
			require.NoError(t, err)
			isDir, err := tt.p.IsDir(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.exists, exists)
			assert.Equal(t, tt.isFile, isFile)
			assert.Equal(t, tt.isDir, isDir)
		})
	}

	size, err := file.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	_, err = dir.Size(ctx)
	assert.ErrorIs(t, err, epath.ErrIsDirectory)
}

func TestLocal_Glob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.path(t, t.TempDir())
	for _, name := range []string{"a.txt", "b.json", "sub/c.txt", "sub/deep/d.txt"} {
		writeText(t, root.Join(name), name)
	}

	got, err := root.Glob(ctx, "*.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{root.Join("a.txt").String()}, names(got))

	got, err = root.Glob(ctx, "**/*.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{
		root.Join("a.txt").String(),
		root.Join("sub/c.txt").String(),
		root.Join("sub/deep/d.txt").String(),
	}, names(got))

	got, err = root.Glob(ctx, "**")
	require.NoError(t, err)
	assert.Len(t, got, 6, "files and folders, root excluded")

	got, err = root.Glob(ctx, "[ab].*")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLocal_Remove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.path(t, t.TempDir())
	file := root.Join("d/f.txt")
	writeText(t, file, "x")
	dir := file.Parent()

	err := dir.Remove(ctx, false)
	assert.ErrorIs(t, err, epath.ErrDirectoryNotEmpty, "rmdir semantics: directory must be empty")

	err = file.Remove(ctx, true)
	assert.ErrorIs(t, err, epath.ErrNotDirectory)

	require.NoError(t, file.Remove(ctx, false))
	require.NoError(t, dir.Remove(ctx, false))

	writeText(t, root.Join("t/x/y.txt"), "y")
	require.NoError(t, root.Join("t").Remove(ctx, true))
	exists, err := root.Join("t").Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocal_CopyPreservesMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.path(t, t.TempDir())
	src := root.Join("src.sh")
	writeText(t, src, "#!/bin/sh\n")
	require.NoError(t, os.Chmod(src.String(), 0o750))
	mtime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(src.String(), mtime, mtime))

	dst := root.Join("dst.sh")
	require.NoError(t, src.Copy(ctx, dst, false))

	info, err := os.Stat(dst.String())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(mtime))
	assert.Equal(t, "#!/bin/sh\n", readText(t, dst))

	// An existing directory receives the file under its own name.
	into := root.Join("into")
	require.NoError(t, into.Mkdir(ctx))
	require.NoError(t, src.Copy(ctx, into, false))
	assert.Equal(t, "#!/bin/sh\n", readText(t, into.Join("src.sh")))
}

func TestLocal_Move(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.path(t, t.TempDir())
	src := root.Join("a/f.txt")
	writeText(t, src, "payload")

	dst := root.Join("b.txt")
	require.NoError(t, src.Move(ctx, dst, false))
	assert.Equal(t, "payload", readText(t, dst))

	exists, err := src.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, root.Join("a").Move(ctx, root.Join("c"), true))
	isDir, err := root.Join("c").IsDir(ctx)
	require.NoError(t, err)
	assert.True(t, isDir)
}

func TestLocal_OpenSeek(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.path(t, filepath.Join(t.TempDir(), "f"))
	writeText(t, p, "0123456789")

	r, err := p.Open(ctx)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Seek(-3, io.SeekEnd)
	require.NoError(t, err)
	tail, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "789", string(tail))

	_, err = p.Parent().Open(ctx)
	assert.ErrorIs(t, err, epath.ErrIsDirectory)
}

func TestLocal_Absolute(t *testing.T) {
	env := newTestEnv(t)
	wd, err := os.Getwd()
	require.NoError(t, err)

	abs, err := env.path(t, "rel/x").Absolute()
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(filepath.Join(wd, "rel/x")), abs.String())
	assert.Equal(t, "local", abs.Backend())
}
