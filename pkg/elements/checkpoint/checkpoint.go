package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/randalmurphal/elements/pkg/elements/codec"
	"github.com/randalmurphal/elements/pkg/elements/config"
	"github.com/randalmurphal/elements/pkg/elements/epath"
	"github.com/randalmurphal/elements/pkg/elements/observability"
	"github.com/randalmurphal/elements/pkg/elements/registry"
)

// Layout names inside a checkpoint root and a snapshot directory.
const (
	LatestFile = "latest"
	DoneFile   = "done"

	// ReservedPrefix starts names that cannot be registered.
	ReservedPrefix = "_"

	// MaxShards bounds the shards written for one key.
	MaxShards = 100000
)

// Counter supplies the current step. *atomic.Int64 satisfies it.
type Counter interface {
	Load() int64
}

// Checkpoint saves and restores a set of named Saveables as snapshot
// directories under a root.
//
// A Checkpoint assumes a single writer per root. Concurrent loads of a
// complete snapshot are safe.
type Checkpoint struct {
	root      epath.Path
	keep      int
	step      Counter
	write     bool
	codec     codec.Codec
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	catalog   Catalog
	now       func() time.Time
	saveables *registry.Registry[string, Saveable]

	mu       sync.Mutex
	lastName string
}

// Option configures a Checkpoint.
type Option func(*Checkpoint)

// WithKeep retains the newest n snapshots after each save under the root.
// n <= 0 keeps all of them.
func WithKeep(n int) Option {
	return func(c *Checkpoint) {
		c.keep = n
	}
}

// WithStep appends the counter value to derived snapshot names.
func WithStep(step Counter) Option {
	return func(c *Checkpoint) {
		c.step = step
	}
}

// WithWrite enables or disables persisting bytes. With write disabled every
// Save still runs but nothing is created under the root.
func WithWrite(write bool) Option {
	return func(c *Checkpoint) {
		c.write = write
	}
}

// WithCodec sets the payload encoding. The default is codec.Default.
func WithCodec(cd codec.Codec) Option {
	return func(c *Checkpoint) {
		c.codec = cd
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checkpoint) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *Checkpoint) {
		c.metrics = m
	}
}

// WithSpans sets the span manager.
func WithSpans(s observability.SpanManager) Option {
	return func(c *Checkpoint) {
		c.spans = s
	}
}

// WithCatalog indexes committed snapshots in cat.
func WithCatalog(cat Catalog) Option {
	return func(c *Checkpoint) {
		c.catalog = cat
	}
}

// WithClock replaces time.Now for snapshot naming.
func WithClock(now func() time.Time) Option {
	return func(c *Checkpoint) {
		c.now = now
	}
}

// New creates a Checkpoint rooted at root. A zero root is allowed when
// every Save and Load is given an explicit path.
func New(root epath.Path, opts ...Option) *Checkpoint {
	c := &Checkpoint{
		root:      root,
		write:     true,
		codec:     codec.Default,
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
		now:       time.Now,
		saveables: registry.New[string, Saveable](),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if !root.IsZero() {
		c.logger = observability.EnrichLogger(c.logger, root.String(), root.Backend())
	}
	return c
}

// FromSettings creates a Checkpoint from configuration, resolving the root
// through the default path registry. opts are applied after the settings.
func FromSettings(s config.CheckpointSettings, opts ...Option) (*Checkpoint, error) {
	cd, err := codec.ByName(s.Codec)
	if err != nil {
		return nil, err
	}
	var root epath.Path
	if s.Root != "" {
		root, err = epath.Default().Parse(s.Root)
		if err != nil {
			return nil, err
		}
	}
	base := []Option{WithKeep(s.Keep), WithWrite(s.Write), WithCodec(cd)}
	return New(root, append(base, opts...)...), nil
}

// Root returns the root directory, or the zero Path.
func (c *Checkpoint) Root() epath.Path {
	return c.root
}

// Register binds name to v, replacing any previous binding. v must
// implement Saveable.
func (c *Checkpoint) Register(name string, v any) error {
	if err := validName(name); err != nil {
		return err
	}
	s, ok := v.(Saveable)
	if !ok || s == nil {
		return fmt.Errorf("%w: %q is %T", ErrNotSaveable, name, v)
	}
	if ch, ok := s.(checker); ok {
		if err := ch.check(); err != nil {
			return fmt.Errorf("register %q: %w", name, err)
		}
	}
	c.saveables.Register(name, s)
	return nil
}

// Unregister removes name. It reports whether name was registered.
func (c *Checkpoint) Unregister(name string) bool {
	return c.saveables.Delete(name)
}

// Keys returns the registered names in save order.
func (c *Checkpoint) Keys() []string {
	return registry.SortedKeys(c.saveables)
}

func validName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	case strings.HasPrefix(name, ReservedPrefix):
		return fmt.Errorf("%w: %q starts with reserved prefix %q", ErrInvalidName, name, ReservedPrefix)
	case strings.ContainsAny(name, `/\*?[]{}`):
		return fmt.Errorf("%w: %q contains path or pattern characters", ErrInvalidName, name)
	}
	return nil
}

// selected returns the saveables named by keys, or all of them in order.
func (c *Checkpoint) selected(op string, keys []string) ([]string, map[string]Saveable, error) {
	all := c.saveables.Snapshot()
	if len(keys) == 0 {
		return c.Keys(), all, nil
	}
	for _, k := range keys {
		if _, ok := all[k]; !ok {
			return nil, nil, &KeyError{Key: k, Op: op, Err: ErrKeyNotFound}
		}
	}
	return keys, all, nil
}

// Latest returns the snapshot the latest pointer names. ok is false when
// there is no pointer.
func (c *Checkpoint) Latest(ctx context.Context) (epath.Path, bool, error) {
	if c.root.IsZero() {
		return epath.Path{}, false, ErrNoRoot
	}
	ptr := c.root.Join(LatestFile)
	ok, err := ptr.IsFile(ctx)
	if err != nil || !ok {
		return epath.Path{}, false, err
	}
	name, err := ptr.ReadText(ctx)
	if err != nil {
		return epath.Path{}, false, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return epath.Path{}, false, nil
	}
	return c.root.Join(name), true, nil
}

// Exists reports whether path is a complete snapshot. A zero path checks
// the snapshot named by the latest pointer.
func (c *Checkpoint) Exists(ctx context.Context, path epath.Path) (bool, error) {
	if path.IsZero() {
		latest, ok, err := c.Latest(ctx)
		if err != nil || !ok {
			return false, err
		}
		path = latest
	}
	return path.Join(DoneFile).IsFile(ctx)
}

// Snapshots returns the complete snapshot directories under the root,
// oldest first.
func (c *Checkpoint) Snapshots(ctx context.Context) ([]epath.Path, error) {
	if c.root.IsZero() {
		return nil, ErrNoRoot
	}
	ok, err := c.root.IsDir(ctx)
	if err != nil || !ok {
		return nil, err
	}
	markers, err := c.root.Glob(ctx, "*/"+DoneFile)
	if err != nil {
		return nil, err
	}
	out := make([]epath.Path, 0, len(markers))
	for _, m := range markers {
		out = append(out, m.Parent())
	}
	return out, nil
}

// LoadOrSave loads the latest snapshot when one exists and otherwise saves
// a new one. loaded reports which happened.
func (c *Checkpoint) LoadOrSave(ctx context.Context) (loaded bool, err error) {
	ok, err := c.Exists(ctx, epath.Path{})
	if err != nil {
		return false, err
	}
	if ok {
		_, err := c.Load(ctx, epath.Path{})
		return err == nil, err
	}
	_, err = c.Save(ctx, epath.Path{})
	return false, err
}
