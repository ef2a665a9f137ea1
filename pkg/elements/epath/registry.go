package epath

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/randalmurphal/elements/pkg/elements/config"
	"github.com/spf13/afero"
)

// Entry binds a path predicate to the filesystem serving matching paths.
type Entry struct {
	// Name labels the entry in errors and logs.
	Name string

	// Match reports whether the entry serves the raw path string.
	Match func(s string) bool

	// Prepare optionally rewrites the raw string before normalization,
	// e.g. to expand "~" for local paths.
	Prepare func(s string) string

	// FS serves every path this entry matches.
	FS Filesystem
}

// Registry resolves path strings to backends. Entries are evaluated in
// order and the first match wins.
type Registry struct {
	entries []Entry
}

// NewRegistry creates a registry from entries in priority order.
func NewRegistry(entries ...Entry) *Registry {
	return &Registry{entries: append([]Entry(nil), entries...)}
}

// With returns a copy of r with e evaluated before all existing entries.
func (r *Registry) With(e Entry) *Registry {
	entries := make([]Entry, 0, len(r.entries)+1)
	entries = append(entries, e)
	entries = append(entries, r.entries...)
	return &Registry{entries: entries}
}

// Entries returns the entries in priority order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Parse resolves s to a Path. A string matched by no entry is a
// configuration error wrapping ErrNoFilesystem.
func (r *Registry) Parse(s string) (Path, error) {
	for _, e := range r.entries {
		if !e.Match(s) {
			continue
		}
		if e.Prepare != nil {
			s = e.Prepare(s)
		}
		return Path{s: Canonical(s), fs: e.FS}, nil
	}
	return Path{}, fmt.Errorf("%w: %q", ErrNoFilesystem, s)
}

// MustParse is like Parse but panics on error.
func (r *Registry) MustParse(s string) Path {
	p, err := r.Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Close releases resources held by the registry's backends.
func (r *Registry) Close() error {
	var firstErr error
	for _, e := range r.entries {
		if c, ok := e.FS.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Prefix matchers for the standard entries.
const (
	GCSPrefix   = "gs://"
	ProxyPrefix = "/cns/"
)

// HasPrefix returns a predicate matching strings that start with prefix.
func HasPrefix(prefix string) func(string) bool {
	return func(s string) bool { return strings.HasPrefix(s, prefix) }
}

// Any matches every string.
func Any(string) bool { return true }

// ExpandUser replaces a leading "~" with the user's home directory.
func ExpandUser(s string) string {
	if s != "~" && !strings.HasPrefix(s, "~/") {
		return s
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return s
	}
	return filepath.ToSlash(home) + s[1:]
}

// NewDefaultRegistry builds the standard table from storage settings:
// gs:// to the object store, the proxy prefix to the gateway, everything
// else to the local disk.
func NewDefaultRegistry(settings config.StorageSettings) *Registry {
	store := NewObjectStore(
		func(ctx context.Context) (ObjectClient, error) { return DialGCS(ctx) },
		WithMetadataPolicy(RetryPolicy{Timeout: settings.MetadataTimeout}.withDefaults()),
		WithUploadPolicy(RetryPolicy{Timeout: settings.UploadTimeout}.withDefaults()),
		WithAppendTimeout(settings.AppendTimeout, settings.AppendPoll),
	)

	proxyOpts := []ProxyOption{WithHideAccelerators(settings.HideAccelerators)}
	if settings.ProxyAppendSuffix != "" {
		proxyOpts = append(proxyOpts, WithAppendSuffix(settings.ProxyPrefix, settings.ProxyAppendSuffix))
	}
	root := settings.ProxyRoot
	proxy := NewProxy(func() (Gateway, error) {
		var fs afero.Fs = afero.NewOsFs()
		if root != "" && root != "/" {
			fs = afero.NewBasePathFs(fs, root)
		}
		return NewAferoGateway(fs), nil
	}, proxyOpts...)

	prefix := settings.ProxyPrefix
	if prefix == "" {
		prefix = ProxyPrefix
	}
	return NewRegistry(
		Entry{Name: "gcs", Match: HasPrefix(GCSPrefix), FS: store},
		Entry{Name: "proxy", Match: HasPrefix(prefix), FS: proxy},
		Entry{Name: "local", Match: Any, Prepare: ExpandUser, FS: NewLocal()},
	)
}

var (
	defaultMu       sync.RWMutex
	defaultRegistry *Registry
)

// Default returns the process-wide registry, building the standard table
// with default settings on first use.
func Default() *Registry {
	defaultMu.RLock()
	r := defaultRegistry
	defaultMu.RUnlock()
	if r != nil {
		return r
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	// Double-check after acquiring write lock
	if defaultRegistry == nil {
		defaultRegistry = NewDefaultRegistry(config.DefaultStorageSettings())
	}
	return defaultRegistry
}

// SetDefault replaces the process-wide registry and returns the previous
// one. Tests use it to substitute fake backends.
func SetDefault(r *Registry) *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultRegistry
	defaultRegistry = r
	return prev
}
