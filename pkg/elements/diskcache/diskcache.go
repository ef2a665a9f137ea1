// Package diskcache memoizes function results on any epath backend.
//
// Entries live at <root>/<name>/<sha256 of inputs><ext>. The inputs are
// JSON-encoded with sorted map keys before hashing, and stored next to the
// output so a hash collision is detected instead of returning the wrong
// value.
//
//	cache := diskcache.New[[]float64](epath.MustNew("gs://bucket/cache"), "embeddings")
//	embed := diskcache.Wrap(cache, computeEmbeddings)
//	vec, err := embed(ctx, "some text")
package diskcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/randalmurphal/elements/pkg/elements/codec"
	"github.com/randalmurphal/elements/pkg/elements/epath"
	"github.com/randalmurphal/elements/pkg/elements/registry"
)

// ErrCollision indicates an entry whose stored inputs differ from the
// inputs that hashed to it.
var ErrCollision = errors.New("diskcache hash collision")

// Cache stores results of type T keyed by their inputs.
type Cache[T any] struct {
	folder  epath.Path
	codec   codec.Codec
	refresh bool
	logger  *slog.Logger
	locks   *registry.Registry[string, *sync.Mutex]
}

type options struct {
	codec   codec.Codec
	refresh bool
	logger  *slog.Logger
}

// Option configures a Cache.
type Option func(*options)

// WithCodec sets the entry encoding. The default is codec.Gob, which keeps
// concrete numeric types intact.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithRefresh makes every Get recompute and overwrite its entry.
func WithRefresh(refresh bool) Option {
	return func(o *options) {
		o.refresh = refresh
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a cache stored under root/name.
func New[T any](root epath.Path, name string, opts ...Option) *Cache[T] {
	o := options{codec: codec.Gob}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Cache[T]{
		folder:  root.Join(name),
		codec:   o.codec,
		refresh: o.refresh,
		logger:  o.logger.With(slog.String("cache", name)),
		locks:   registry.New[string, *sync.Mutex](),
	}
}

// Folder returns the directory holding the entries.
func (c *Cache[T]) Folder() epath.Path {
	return c.folder
}

// entry is the stored form of one result.
type entry[T any] struct {
	Inputs string
	Output T
}

// Key returns the entry name for inputs. inputs must be JSON-encodable.
func Key(inputs any) (hash, canonical string, err error) {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "", "", fmt.Errorf("diskcache inputs must be JSON-encodable: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), string(data), nil
}

// Get returns the cached result for inputs, calling fill and storing its
// result on a miss. Concurrent Gets for the same inputs in one process
// call fill once.
func (c *Cache[T]) Get(ctx context.Context, inputs any, fill func(context.Context) (T, error)) (T, error) {
	return c.get(ctx, inputs, fill, c.refresh)
}

// Refresh recomputes the result for inputs and overwrites the entry.
func (c *Cache[T]) Refresh(ctx context.Context, inputs any, fill func(context.Context) (T, error)) (T, error) {
	return c.get(ctx, inputs, fill, true)
}

func (c *Cache[T]) get(ctx context.Context, inputs any, fill func(context.Context) (T, error), refresh bool) (T, error) {
	var zero T
	hash, canonical, err := Key(inputs)
	if err != nil {
		return zero, err
	}
	mu := c.locks.GetOrCreate(hash, func() *sync.Mutex { return new(sync.Mutex) })
	mu.Lock()
	defer mu.Unlock()

	file := c.folder.Join(hash + c.codec.Ext())
	if !refresh {
		ok, err := file.IsFile(ctx)
		if err != nil {
			return zero, err
		}
		if ok {
			c.logger.Debug("loading diskcache", slog.String("path", file.String()))
			return c.read(ctx, file, canonical)
		}
	}

	c.logger.Debug("filling diskcache", slog.String("path", file.String()))
	out, err := fill(ctx)
	if err != nil {
		return zero, err
	}
	data, err := c.codec.Marshal(entry[T]{Inputs: canonical, Output: out})
	if err != nil {
		return zero, fmt.Errorf("encode diskcache entry: %w", err)
	}
	if err := c.folder.Mkdir(ctx); err != nil {
		return zero, err
	}
	if err := file.Write(ctx, data, epath.Truncate); err != nil {
		return zero, err
	}
	return out, nil
}

func (c *Cache[T]) read(ctx context.Context, file epath.Path, canonical string) (T, error) {
	var e entry[T]
	data, err := file.Read(ctx)
	if err != nil {
		return e.Output, err
	}
	if err := c.codec.Unmarshal(data, &e); err != nil {
		return e.Output, fmt.Errorf("decode %s: %w", file, err)
	}
	if e.Inputs != canonical {
		var zero T
		return zero, fmt.Errorf("%w: %s stores %s, want %s", ErrCollision, file, e.Inputs, canonical)
	}
	return e.Output, nil
}

// Clear removes every entry. A cache that was never filled is left alone.
func (c *Cache[T]) Clear(ctx context.Context) error {
	c.logger.Debug("clearing diskcache", slog.String("path", c.folder.String()))
	ok, err := c.folder.IsDir(ctx)
	if err != nil || !ok {
		return err
	}
	files, err := c.folder.Glob(ctx, "*"+c.codec.Ext())
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := f.Remove(ctx, false); err != nil {
			return err
		}
	}
	return nil
}

// Wrap returns fn memoized through c, keyed by its argument.
func Wrap[A, T any](c *Cache[T], fn func(context.Context, A) (T, error)) func(context.Context, A) (T, error) {
	return func(ctx context.Context, arg A) (T, error) {
		return c.Get(ctx, arg, func(ctx context.Context) (T, error) {
			return fn(ctx, arg)
		})
	}
}
