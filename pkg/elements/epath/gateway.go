package epath

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// Gateway is the client surface of a distributed filesystem reached
// through a local mount or RPC proxy. Names are absolute slash paths,
// optionally carrying a trailing "%key=value" option token.
type Gateway interface {
	Open(name string) (io.ReadSeekCloser, error)
	OpenFile(name string, flag int) (io.WriteCloser, error)
	Stat(name string) (fs.FileInfo, error)
	// Glob returns the names under dir matching pattern, relative to dir.
	Glob(dir, pattern string) ([]string, error)
	MkdirAll(name string) error
	Remove(name string) error
	RemoveAll(name string) error
	Rename(oldname, newname string) error
	Copy(src, dst string, overwrite bool) error
}

// AferoGateway serves a Gateway from an afero filesystem: the OS mount
// in production, a MemMapFs in tests.
type AferoGateway struct {
	fs afero.Fs
}

// NewAferoGateway wraps fs.
func NewAferoGateway(fs afero.Fs) *AferoGateway {
	return &AferoGateway{fs: fs}
}

// stripOptions drops a trailing "%key=value" token; the mount does not
// understand gateway options.
func stripOptions(name string) string {
	if i := strings.LastIndex(name, "%"); i >= 0 && strings.Contains(name[i:], "=") && !strings.Contains(name[i:], "/") {
		return name[:i]
	}
	return name
}

// Open implements Gateway.
func (g *AferoGateway) Open(name string) (io.ReadSeekCloser, error) {
	f, err := g.fs.Open(stripOptions(name))
	if err != nil {
		return nil, err
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		f.Close()
		return nil, &PathError{Op: "open", Path: name, Err: ErrIsDirectory}
	}
	return f, nil
}

// OpenFile implements Gateway.
func (g *AferoGateway) OpenFile(name string, flag int) (io.WriteCloser, error) {
	return g.fs.OpenFile(stripOptions(name), flag, 0o644)
}

// Stat implements Gateway.
func (g *AferoGateway) Stat(name string) (fs.FileInfo, error) {
	return g.fs.Stat(stripOptions(name))
}

// Glob implements Gateway. The walk starts at the pattern's static prefix
// so shallow patterns do not visit the whole tree.
func (g *AferoGateway) Glob(dir, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, doublestar.ErrBadPattern
	}
	dir = strings.TrimSuffix(dir, "/")
	static, _ := doublestar.SplitPattern(pattern)
	start := dir
	if static != "." {
		start = dir + "/" + static
	}

	var out []string
	err := afero.Walk(g.fs, start, func(name string, info fs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(name, dir), "/")
		if rel == "" {
			return nil
		}
		if doublestar.MatchUnvalidated(pattern, rel) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(out)
	return out, nil
}

// MkdirAll implements Gateway.
func (g *AferoGateway) MkdirAll(name string) error {
	return g.fs.MkdirAll(stripOptions(name), 0o755)
}

// Remove implements Gateway. Directories must be empty.
func (g *AferoGateway) Remove(name string) error {
	name = stripOptions(name)
	info, err := g.fs.Stat(name)
	if err != nil {
		return err
	}
	if info.IsDir() {
		empty, err := afero.IsEmpty(g.fs, name)
		if err != nil {
			return err
		}
		if !empty {
			return &PathError{Op: "remove", Path: name, Err: ErrDirectoryNotEmpty}
		}
	}
	return g.fs.Remove(name)
}

// RemoveAll implements Gateway.
func (g *AferoGateway) RemoveAll(name string) error {
	return g.fs.RemoveAll(stripOptions(name))
}

// Rename implements Gateway.
func (g *AferoGateway) Rename(oldname, newname string) error {
	return g.fs.Rename(stripOptions(oldname), stripOptions(newname))
}

// Copy implements Gateway.
func (g *AferoGateway) Copy(src, dst string, overwrite bool) (err error) {
	src, dst = stripOptions(src), stripOptions(dst)
	if !overwrite {
		if ok, err := afero.Exists(g.fs, dst); err != nil {
			return err
		} else if ok {
			return &PathError{Op: "copy", Path: dst, Err: ErrExist}
		}
	}
	in, err := g.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if info, err := in.Stat(); err == nil && info.IsDir() {
		return &PathError{Op: "copy", Path: src, Err: ErrNotFile}
	}
	if err := g.fs.MkdirAll(path.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := g.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
