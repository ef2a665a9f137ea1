package epath

import (
	"context"
	"io"
	"strings"
)

// Path is an immutable, backend-tagged path.
//
// The string is normalized: no leading "./", no single trailing "/" (the
// root "/" is kept) and the empty string becomes ".". Equality and ordering
// look at the string only; two paths on different backends with the same
// text compare equal.
type Path struct {
	s  string
	fs Filesystem
}

// New parses s with the default registry.
func New(s string) (Path, error) {
	return Default().Parse(s)
}

// MustNew is like New but panics if no filesystem matches s.
func MustNew(s string) Path {
	p, err := New(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Canonical returns the normalized form of a path string.
func Canonical(s string) string {
	for strings.HasPrefix(s, "./") {
		s = strings.TrimLeft(s[1:], "/")
	}
	if s == "." {
		return s
	}
	if n := len(s); n >= 2 && s[n-1] == '/' && s[n-2] != '/' {
		s = s[:n-1]
	}
	if s == "" {
		return "."
	}
	return s
}

// String returns the normalized path string.
func (p Path) String() string {
	if p.s == "" {
		return "."
	}
	return p.s
}

// IsZero reports whether p is the zero Path (not parsed from any string).
func (p Path) IsZero() bool {
	return p.fs == nil
}

// Filesystem returns the backend serving p.
func (p Path) Filesystem() Filesystem {
	return p.fs
}

// Backend returns the name of the backend serving p.
func (p Path) Backend() string {
	if p.fs == nil {
		return ""
	}
	return p.fs.Name()
}

// with returns a path on the same filesystem.
func (p Path) with(s string) Path {
	return Path{s: Canonical(s), fs: p.fs}
}

// Join appends parts with "/" separators. The result keeps p's backend.
func (p Path) Join(parts ...string) Path {
	s := p.String()
	for _, part := range parts {
		if strings.HasSuffix(s, "/") {
			s += part
		} else {
			s += "/" + part
		}
	}
	return p.with(s)
}

// Parent returns the directory containing p. The parent of "." and "/" is
// the path itself, and so is the parent of a bucket root like "gs://b".
func (p Path) Parent() Path {
	s := p.String()
	if i := strings.Index(s, "://"); i >= 0 && !strings.Contains(s[i+3:], "/") {
		return p
	}
	i := strings.LastIndex(s, "/")
	if i < 0 {
		return p.with(".")
	}
	parent := s[:i]
	if parent == "" {
		if strings.HasPrefix(s, "/") {
			parent = "/"
		} else {
			parent = "."
		}
	}
	return p.with(parent)
}

// Name returns the last element of p.
func (p Path) Name() string {
	s := p.String()
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Stem returns the name up to its first dot.
func (p Path) Stem() string {
	name := p.Name()
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}

// Suffix returns the name from its first dot on, e.g. ".tar.gz".
func (p Path) Suffix() string {
	name := p.Name()
	if i := strings.Index(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

// Equal reports whether both paths have the same string.
func (p Path) Equal(o Path) bool {
	return p.String() == o.String()
}

// Less orders paths by their strings.
func (p Path) Less(o Path) bool {
	return p.String() < o.String()
}

// Compare returns -1, 0 or +1 comparing path strings.
func (p Path) Compare(o Path) int {
	return strings.Compare(p.String(), o.String())
}

// MarshalText implements encoding.TextMarshaler. Only the string is kept.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler by re-parsing the
// string with the default registry.
func (p *Path) UnmarshalText(text []byte) error {
	parsed, err := New(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Open opens p for reading.
func (p Path) Open(ctx context.Context) (io.ReadSeekCloser, error) {
	return p.fs.Open(ctx, p)
}

// Create opens p for writing in the given mode.
func (p Path) Create(ctx context.Context, mode WriteMode) (io.WriteCloser, error) {
	return p.fs.Create(ctx, p, mode)
}

// Read returns the full contents of p.
func (p Path) Read(ctx context.Context) ([]byte, error) {
	r, err := p.fs.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, pathErr("read", p, err)
	}
	return data, nil
}

// ReadText returns the contents of p as a string.
func (p Path) ReadText(ctx context.Context) (string, error) {
	data, err := p.Read(ctx)
	return string(data), err
}

// Write writes data to p in the given mode.
func (p Path) Write(ctx context.Context, data []byte, mode WriteMode) error {
	w, err := p.fs.Create(ctx, p, mode)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return pathErr("write", p, err)
	}
	if err := w.Close(); err != nil {
		return pathErr("write", p, err)
	}
	return nil
}

// WriteText writes text to p, replacing any previous content.
func (p Path) WriteText(ctx context.Context, text string) error {
	return p.Write(ctx, []byte(text), Truncate)
}

// Absolute returns an absolute form of p.
func (p Path) Absolute() (Path, error) {
	return p.fs.Absolute(p)
}

// Glob returns the descendants of p matching pattern, sorted. Patterns
// support "*", "**" and bracket classes. p itself is never returned.
func (p Path) Glob(ctx context.Context, pattern string) ([]Path, error) {
	return p.fs.Glob(ctx, p, pattern)
}

// Exists reports whether p is a file or a directory.
func (p Path) Exists(ctx context.Context) (bool, error) {
	return p.fs.Exists(ctx, p)
}

// IsFile reports whether p is a regular file.
func (p Path) IsFile(ctx context.Context) (bool, error) {
	return p.fs.IsFile(ctx, p)
}

// IsDir reports whether p is a directory.
func (p Path) IsDir(ctx context.Context) (bool, error) {
	return p.fs.IsDir(ctx, p)
}

// Mkdir creates p and any missing parents. Existing directories are fine.
func (p Path) Mkdir(ctx context.Context) error {
	return p.fs.Mkdir(ctx, p)
}

// Remove deletes p. Without recursive, directories must be empty.
func (p Path) Remove(ctx context.Context, recursive bool) error {
	return p.fs.Remove(ctx, p, recursive)
}

// Copy copies p to dst, which may live on another backend.
func (p Path) Copy(ctx context.Context, dst Path, recursive bool) error {
	return p.fs.Copy(ctx, p, dst, recursive)
}

// Move moves p to dst, which may live on another backend.
func (p Path) Move(ctx context.Context, dst Path, recursive bool) error {
	return p.fs.Move(ctx, p, dst, recursive)
}

// Size returns the size of the file at p in bytes.
func (p Path) Size(ctx context.Context) (int64, error) {
	return p.fs.Size(ctx, p)
}
