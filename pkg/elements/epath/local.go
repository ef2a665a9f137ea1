package epath

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
)

// Local serves paths on the machine's own filesystem.
type Local struct{}

// NewLocal returns the local disk backend.
func NewLocal() *Local { return &Local{} }

// Name implements Filesystem.
func (*Local) Name() string { return "local" }

// Open implements Filesystem.
func (*Local) Open(_ context.Context, p Path) (io.ReadSeekCloser, error) {
	f, err := os.Open(p.String())
	if err != nil {
		return nil, err
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		f.Close()
		return nil, pathErr("open", p, ErrIsDirectory)
	}
	return f, nil
}

// Create implements Filesystem.
func (*Local) Create(_ context.Context, p Path, mode WriteMode) (io.WriteCloser, error) {
	flag := os.O_WRONLY | os.O_CREATE
	switch mode {
	case Append:
		flag |= os.O_APPEND
	case Exclusive:
		flag |= os.O_EXCL
	default:
		flag |= os.O_TRUNC
	}
	return os.OpenFile(p.String(), flag, 0o644)
}

// Glob implements Filesystem.
func (*Local) Glob(_ context.Context, p Path, pattern string) ([]Path, error) {
	matches, err := doublestar.Glob(os.DirFS(p.String()), pattern)
	if err != nil {
		return nil, pathErr("glob", p, err)
	}
	out := make([]Path, 0, len(matches))
	for _, m := range matches {
		if m == "." {
			continue
		}
		out = append(out, p.Join(m))
	}
	slices.SortFunc(out, Path.Compare)
	return out, nil
}

// Exists implements Filesystem.
func (*Local) Exists(_ context.Context, p Path) (bool, error) {
	_, err := os.Stat(p.String())
	return statResult(err, true)
}

// IsFile implements Filesystem.
func (*Local) IsFile(_ context.Context, p Path) (bool, error) {
	info, err := os.Stat(p.String())
	if err != nil {
		return statResult(err, false)
	}
	return info.Mode().IsRegular(), nil
}

// IsDir implements Filesystem.
func (*Local) IsDir(_ context.Context, p Path) (bool, error) {
	info, err := os.Stat(p.String())
	if err != nil {
		return statResult(err, false)
	}
	return info.IsDir(), nil
}

// Mkdir implements Filesystem.
func (*Local) Mkdir(_ context.Context, p Path) error {
	return os.MkdirAll(p.String(), 0o755)
}

// Remove implements Filesystem. Non-recursive removal of a directory
// behaves like rmdir.
func (*Local) Remove(_ context.Context, p Path, recursive bool) error {
	if !recursive {
		err := os.Remove(p.String())
		if errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST) {
			return pathErr("remove", p, ErrDirectoryNotEmpty)
		}
		return err
	}
	info, err := os.Stat(p.String())
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return pathErr("remove", p, ErrNotDirectory)
	}
	return os.RemoveAll(p.String())
}

// Copy implements Filesystem. Single files on the local disk are copied
// with their mode and modification time; everything else goes through
// CrossCopy.
func (l *Local) Copy(ctx context.Context, src, dst Path, recursive bool) error {
	if recursive || !sameBackend(l, dst) {
		return CrossCopy(ctx, src, dst, recursive)
	}
	target, err := intoDir(dst, src)
	if err != nil {
		return err
	}
	return copyLocalFile(src.String(), target)
}

// Move implements Filesystem. Moves within one device are renames.
func (l *Local) Move(ctx context.Context, src, dst Path, recursive bool) error {
	if !sameBackend(l, dst) {
		return crossMove(ctx, src, dst, recursive)
	}
	target, err := intoDir(dst, src)
	if err != nil {
		return err
	}
	err = os.Rename(src.String(), target)
	if errors.Is(err, syscall.EXDEV) {
		return crossMove(ctx, src, dst, recursive)
	}
	return err
}

// Size implements Filesystem.
func (*Local) Size(_ context.Context, p Path) (int64, error) {
	info, err := os.Stat(p.String())
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, pathErr("size", p, ErrIsDirectory)
	}
	return info.Size(), nil
}

// Absolute implements Filesystem.
func (*Local) Absolute(p Path) (Path, error) {
	abs, err := filepath.Abs(p.String())
	if err != nil {
		return Path{}, pathErr("absolute", p, err)
	}
	return p.with(filepath.ToSlash(abs)), nil
}

// statResult converts a stat error into an existence answer.
func statResult(err error, onSuccess bool) (bool, error) {
	switch {
	case err == nil:
		return onSuccess, nil
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return false, nil
	default:
		return false, err
	}
}

// intoDir resolves a copy or move target the way cp and mv do: an
// existing directory receives the source under its own name.
func intoDir(dst, src Path) (string, error) {
	info, err := os.Stat(dst.String())
	switch {
	case err == nil && info.IsDir():
		return dst.Join(src.Name()).String(), nil
	case err == nil, errors.Is(err, fs.ErrNotExist):
		return dst.String(), nil
	default:
		return "", err
	}
}

func copyLocalFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return &PathError{Op: "copy", Path: src, Err: ErrNotFile}
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Chmod(info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
