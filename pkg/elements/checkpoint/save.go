package checkpoint

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/elements/pkg/elements/epath"
	"github.com/randalmurphal/elements/pkg/elements/observability"
)

const (
	snapshotLayout = "20060102T150405"
	stepFormat     = "-%012d"
)

// Save writes the selected saveables, or all of them when keys is empty,
// into a snapshot directory and returns it.
//
// A zero path derives a new directory under the root named by the current
// time and, when configured, the step. Only derived snapshots move the
// latest pointer and trigger retention. The done marker is written after
// every key succeeded; a failed save leaves the directory incomplete.
func (c *Checkpoint) Save(ctx context.Context, path epath.Path, keys ...string) (epath.Path, error) {
	names, saveables, err := c.selected("save", keys)
	if err != nil {
		return epath.Path{}, err
	}
	derived := path.IsZero()
	if derived {
		if c.root.IsZero() {
			return epath.Path{}, ErrNoRoot
		}
		path = c.root.Join(c.nextName())
	}

	ctx, span := c.spans.StartSaveSpan(ctx, path.String(), c.write)
	elapsed := observability.TimedOperation()
	observability.LogSaveStart(c.logger, path.String(), names, c.write)

	size, err := c.save(ctx, path, names, saveables)
	if err == nil && c.write {
		err = c.commit(ctx, path, derived)
		if err == nil && derived {
			c.record(ctx, path, names, size)
			c.cleanup(ctx)
		}
	}
	durationMs := elapsed()
	c.metrics.RecordSave(ctx, path.Backend(), time.Duration(durationMs*float64(time.Millisecond)), size, err)
	c.spans.EndSpanWithError(span, err)
	if err != nil {
		return epath.Path{}, err
	}
	observability.LogSaveComplete(c.logger, path.String(), durationMs, size, c.write)
	return path, nil
}

func (c *Checkpoint) save(ctx context.Context, dir epath.Path, names []string, saveables map[string]Saveable) (int64, error) {
	if c.write {
		if err := dir.Mkdir(ctx); err != nil {
			return 0, err
		}
	}
	var total int64
	for _, name := range names {
		n, err := c.saveKey(ctx, dir, name, saveables[name])
		if err != nil {
			observability.LogKeyError(c.logger, "save", name, dir.String(), err)
			return total, &KeyError{Key: name, Op: "save", Err: err}
		}
		total += n
	}
	return total, nil
}

func (c *Checkpoint) saveKey(ctx context.Context, dir epath.Path, name string, s Saveable) (int64, error) {
	ctx, span := c.spans.StartKeySpan(ctx, "save", name)
	out, err := s.Save(ctx)
	var n int64
	if err == nil {
		switch v := out.(type) {
		case Shards:
			n, err = c.writeShards(ctx, dir, name, iter.Seq2[any, error](v))
		case iter.Seq2[any, error]:
			n, err = c.writeShards(ctx, dir, name, v)
		default:
			n, err = c.writeValue(ctx, dir.Join(name+c.codec.Ext()), v)
		}
	}
	c.spans.EndSpanWithError(span, err)
	return n, err
}

func (c *Checkpoint) writeShards(ctx context.Context, dir epath.Path, name string, shards iter.Seq2[any, error]) (int64, error) {
	var total int64
	i := 0
	for v, err := range shards {
		if err != nil {
			return total, err
		}
		if i >= MaxShards {
			return total, fmt.Errorf("%w: %s exceeds %d", ErrTooManyShards, name, MaxShards)
		}
		n, err := c.writeValue(ctx, dir.Join(shardName(name, i, c.codec.Ext())), v)
		if err != nil {
			return total, fmt.Errorf("shard %d: %w", i, err)
		}
		total += n
		i++
	}
	return total, nil
}

// writeValue encodes v and writes it unless the store is a dry run. The
// encoded size is returned either way.
func (c *Checkpoint) writeValue(ctx context.Context, p epath.Path, v any) (int64, error) {
	data, err := c.codec.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", p.Name(), err)
	}
	if c.write {
		if err := p.Write(ctx, data, epath.Truncate); err != nil {
			return 0, err
		}
	}
	return int64(len(data)), nil
}

// commit marks dir complete and, for derived snapshots, points latest at it.
func (c *Checkpoint) commit(ctx context.Context, dir epath.Path, derived bool) error {
	if err := dir.Join(DoneFile).Write(ctx, nil, epath.Truncate); err != nil {
		return err
	}
	if !derived {
		return nil
	}
	return c.root.Join(LatestFile).WriteText(ctx, dir.Name())
}

func shardName(name string, i int, ext string) string {
	return fmt.Sprintf("%s-%04d%s", name, i, ext)
}

// nextName returns a snapshot directory name greater than any this store
// derived before.
func (c *Checkpoint) nextName() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Millisecond)
	name := c.formatName(t)
	for name <= c.lastName {
		t = t.Add(time.Millisecond)
		name = c.formatName(t)
	}
	c.lastName = name
	return name
}

func (c *Checkpoint) formatName(t time.Time) string {
	name := fmt.Sprintf("%sF%03d", t.Format(snapshotLayout), t.Nanosecond()/int(time.Millisecond))
	if c.step != nil {
		name += fmt.Sprintf(stepFormat, c.step.Load())
	}
	return name
}

// snapshotTime parses the timestamp prefix of a derived snapshot name.
func snapshotTime(name string) (time.Time, bool) {
	const n = len(snapshotLayout)
	if len(name) < n+4 || name[n] != 'F' {
		return time.Time{}, false
	}
	t, err := time.Parse(snapshotLayout, name[:n])
	if err != nil {
		return time.Time{}, false
	}
	ms, err := strconv.Atoi(name[n+1 : n+4])
	if err != nil || ms < 0 {
		return time.Time{}, false
	}
	return t.Add(time.Duration(ms) * time.Millisecond), true
}

func (c *Checkpoint) record(ctx context.Context, dir epath.Path, names []string, size int64) {
	if c.catalog == nil {
		return
	}
	info := SnapshotInfo{
		Root:      c.root.String(),
		Name:      dir.Name(),
		Step:      -1,
		Keys:      names,
		Size:      size,
		CreatedAt: time.Now().UTC(),
	}
	if t, ok := snapshotTime(info.Name); ok {
		info.CreatedAt = t
	}
	if c.step != nil {
		info.Step = c.step.Load()
	}
	if err := c.catalog.Record(ctx, info); err != nil {
		observability.LogCatalogError(c.logger, "record", dir.String(), err)
	}
}

// cleanup removes all but the newest keep snapshot directories under the
// root. Failures are logged; the new snapshot is already committed.
func (c *Checkpoint) cleanup(ctx context.Context) {
	if c.keep <= 0 {
		return
	}
	entries, err := c.root.Glob(ctx, "*")
	if err != nil {
		observability.LogCleanupError(c.logger, c.root.String(), err)
		return
	}
	dirs := make([]epath.Path, 0, len(entries))
	for _, e := range entries {
		if e.Name() == LatestFile {
			continue
		}
		if ok, err := e.IsDir(ctx); err == nil && ok {
			dirs = append(dirs, e)
		}
	}
	if len(dirs) <= c.keep {
		return
	}
	removed := 0
	for _, dir := range dirs[:len(dirs)-c.keep] {
		if err := dir.Remove(ctx, true); err != nil {
			observability.LogCleanupError(c.logger, dir.String(), err)
			continue
		}
		removed++
		observability.LogCleanup(c.logger, dir.String(), c.keep)
		if c.catalog != nil {
			if err := c.catalog.Forget(ctx, c.root.String(), dir.Name()); err != nil {
				observability.LogCatalogError(c.logger, "forget", dir.String(), err)
			}
		}
	}
	c.metrics.RecordRetention(ctx, c.root.Backend(), removed)
	c.spans.AddSpanEvent(ctx, "retention",
		attribute.Int("keep", c.keep),
		attribute.Int("removed", removed),
	)
}
