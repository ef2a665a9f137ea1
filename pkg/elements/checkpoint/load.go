package checkpoint

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/randalmurphal/elements/pkg/elements/epath"
	"github.com/randalmurphal/elements/pkg/elements/observability"
)

// Load restores the selected saveables, or all of them when keys is empty,
// from a complete snapshot and returns it. A zero path loads the snapshot
// named by the latest pointer.
//
// Every selected key must be present in the snapshot. A Load error leaves
// keys restored before the failure in their new state.
func (c *Checkpoint) Load(ctx context.Context, path epath.Path, keys ...string) (epath.Path, error) {
	names, saveables, err := c.selected("load", keys)
	if err != nil {
		return epath.Path{}, err
	}
	path, err = c.resolve(ctx, path)
	if err != nil {
		return epath.Path{}, err
	}

	ctx, span := c.spans.StartLoadSpan(ctx, path.String())
	elapsed := observability.TimedOperation()

	err = c.load(ctx, path, names, saveables)
	durationMs := elapsed()
	c.metrics.RecordLoad(ctx, path.Backend(), time.Duration(durationMs*float64(time.Millisecond)), err)
	c.spans.EndSpanWithError(span, err)
	if err != nil {
		return epath.Path{}, err
	}

	var age time.Duration
	if t, ok := snapshotTime(path.Name()); ok {
		age = time.Since(t)
	}
	observability.LogLoadComplete(c.logger, path.String(), durationMs, age)
	return path, nil
}

// resolve returns the complete snapshot to load.
func (c *Checkpoint) resolve(ctx context.Context, path epath.Path) (epath.Path, error) {
	if path.IsZero() {
		latest, ok, err := c.Latest(ctx)
		if err != nil {
			return epath.Path{}, err
		}
		if !ok {
			return epath.Path{}, fmt.Errorf("%w: no %s pointer under %s", ErrNoCheckpoint, LatestFile, c.root)
		}
		path = latest
	}
	done, err := path.Join(DoneFile).IsFile(ctx)
	if err != nil {
		return epath.Path{}, err
	}
	if !done {
		return epath.Path{}, fmt.Errorf("%w: %s is not a complete snapshot", ErrNoCheckpoint, path)
	}
	return path, nil
}

func (c *Checkpoint) load(ctx context.Context, dir epath.Path, names []string, saveables map[string]Saveable) error {
	for _, name := range names {
		if err := c.loadKey(ctx, dir, name, saveables[name]); err != nil {
			observability.LogKeyError(c.logger, "load", name, dir.String(), err)
			return &KeyError{Key: name, Op: "load", Err: err}
		}
	}
	return nil
}

func (c *Checkpoint) loadKey(ctx context.Context, dir epath.Path, name string, s Saveable) error {
	ctx, span := c.spans.StartKeySpan(ctx, "load", name)
	p, err := c.payload(ctx, dir, name)
	if err == nil {
		err = s.Load(ctx, p)
	}
	c.spans.EndSpanWithError(span, err)
	return err
}

// payload locates the stored form of name in dir: a single file, or a shard
// set starting at index 0.
func (c *Checkpoint) payload(ctx context.Context, dir epath.Path, name string) (Payload, error) {
	ext := c.codec.Ext()
	p := Payload{key: name, codec: c.codec}

	single := dir.Join(name + ext)
	ok, err := single.IsFile(ctx)
	if err != nil {
		return Payload{}, err
	}
	if ok {
		p.file = single
		return p, nil
	}

	ok, err = dir.Join(shardName(name, 0, ext)).IsFile(ctx)
	if err != nil {
		return Payload{}, err
	}
	if !ok {
		return Payload{}, fmt.Errorf("%w: neither %s nor %s in %s", ErrKeyNotFound, name+ext, shardName(name, 0, ext), dir)
	}
	matches, err := dir.Glob(ctx, name+"-[0-9][0-9][0-9][0-9]*"+ext)
	if err != nil {
		return Payload{}, err
	}
	p.parts = shardOrder(matches, name, ext)
	return p, nil
}

// shardOrder keeps the shard files of name and sorts them by index.
// Indices past 9999 have more digits, so lexical order is not enough.
func shardOrder(matches []epath.Path, name, ext string) []epath.Path {
	type shard struct {
		idx  int
		path epath.Path
	}
	shards := make([]shard, 0, len(matches))
	for _, m := range matches {
		digits := strings.TrimSuffix(strings.TrimPrefix(m.Name(), name+"-"), ext)
		idx, err := strconv.Atoi(digits)
		if err != nil || idx < 0 {
			continue
		}
		shards = append(shards, shard{idx: idx, path: m})
	}
	slices.SortFunc(shards, func(a, b shard) int {
		return cmp.Compare(a.idx, b.idx)
	})
	out := make([]epath.Path, len(shards))
	for i, s := range shards {
		out[i] = s.path
	}
	return out
}
