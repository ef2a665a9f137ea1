package epath

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryObjectClient is an in-process ObjectClient for tests and
// benchmarks. It can delay the visibility of new objects to reproduce an
// eventually consistent store, and it records the retry policy passed to
// every mutation.
type MemoryObjectClient struct {
	mu      sync.Mutex
	buckets map[string]map[string]*memoryObject
	delay   time.Duration
	calls   []MemoryCall
}

// MemoryCall records one mutating call made against a MemoryObjectClient.
type MemoryCall struct {
	Op     string
	Bucket string
	Key    string
	Policy RetryPolicy
}

type memoryObject struct {
	data      []byte
	updated   time.Time
	visibleAt time.Time
}

// NewMemoryObjectClient returns a client with the given buckets created.
func NewMemoryObjectClient(buckets ...string) *MemoryObjectClient {
	c := &MemoryObjectClient{buckets: make(map[string]map[string]*memoryObject)}
	for _, b := range buckets {
		c.CreateBucket(b)
	}
	return c
}

// Dial adapts the client to NewObjectStore.
func (c *MemoryObjectClient) Dial(context.Context) (ObjectClient, error) {
	return c, nil
}

// CreateBucket creates an empty bucket if it does not exist.
func (c *MemoryObjectClient) CreateBucket(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.buckets[name]; !ok {
		c.buckets[name] = make(map[string]*memoryObject)
	}
}

// SetVisibilityDelay hides objects written from now on for d.
func (c *MemoryObjectClient) SetVisibilityDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
}

// Calls returns the mutations made so far.
func (c *MemoryObjectClient) Calls() []MemoryCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}

// Keys returns all keys stored in bucket, visible or not, sorted.
func (c *MemoryObjectClient) Keys(bucket string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.buckets[bucket]))
	for k := range c.buckets[bucket] {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Bucket implements ObjectClient.
func (c *MemoryObjectClient) Bucket(_ context.Context, name string) (Bucket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.buckets[name]; !ok {
		return nil, nil
	}
	return &memoryBucket{client: c, name: name}, nil
}

type memoryBucket struct {
	client *MemoryObjectClient
	name   string
}

func (b *memoryBucket) Name() string { return b.name }

func (b *memoryBucket) notExist(key string) error {
	return &PathError{Op: "memory", Path: b.name + "/" + key, Err: fs.ErrNotExist}
}

// visible returns the object if it exists and can be seen. Callers hold
// the client lock.
func (b *memoryBucket) visible(key string) (*memoryObject, bool) {
	obj, ok := b.client.buckets[b.name][key]
	if !ok || time.Now().Before(obj.visibleAt) {
		return nil, false
	}
	return obj, true
}

// put stores data under key. Callers hold the client lock.
func (b *memoryBucket) put(key string, data []byte) {
	now := time.Now()
	b.client.buckets[b.name][key] = &memoryObject{
		data:      data,
		updated:   now,
		visibleAt: now.Add(b.client.delay),
	}
}

func (b *memoryBucket) record(op, key string, policy RetryPolicy) {
	b.client.calls = append(b.client.calls, MemoryCall{Op: op, Bucket: b.name, Key: key, Policy: policy})
}

func (b *memoryBucket) Stat(_ context.Context, key string) (ObjectAttrs, error) {
	b.client.mu.Lock()
	defer b.client.mu.Unlock()
	obj, ok := b.visible(key)
	if !ok {
		return ObjectAttrs{}, b.notExist(key)
	}
	return ObjectAttrs{Key: key, Size: int64(len(obj.data)), Updated: obj.updated}, nil
}

func (b *memoryBucket) NewReader(_ context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	b.client.mu.Lock()
	defer b.client.mu.Unlock()
	obj, ok := b.visible(key)
	if !ok {
		return nil, b.notExist(key)
	}
	data := obj.data[min(offset, int64(len(obj.data))):]
	if length >= 0 && length < int64(len(data)) {
		data = data[:length]
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type memoryWriter struct {
	bytes.Buffer
	ctx      context.Context
	bucket   *memoryBucket
	key      string
	policy   RetryPolicy
	ifAbsent bool
	closed   bool
}

func (b *memoryBucket) NewWriter(ctx context.Context, key string, policy RetryPolicy, ifAbsent bool) (io.WriteCloser, error) {
	return &memoryWriter{ctx: ctx, bucket: b, key: key, policy: policy, ifAbsent: ifAbsent}, nil
}

func (w *memoryWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.ctx.Err(); err != nil {
		return err
	}
	c := w.bucket.client
	c.mu.Lock()
	defer c.mu.Unlock()
	w.bucket.record("write", w.key, w.policy)
	if _, ok := c.buckets[w.bucket.name][w.key]; ok && w.ifAbsent {
		return &PathError{Op: "memory", Path: w.bucket.name + "/" + w.key, Err: fs.ErrExist}
	}
	w.bucket.put(w.key, slices.Clone(w.Bytes()))
	return nil
}

func (b *memoryBucket) Delete(_ context.Context, key string, policy RetryPolicy) error {
	b.client.mu.Lock()
	defer b.client.mu.Unlock()
	b.record("delete", key, policy)
	if _, ok := b.client.buckets[b.name][key]; !ok {
		return b.notExist(key)
	}
	delete(b.client.buckets[b.name], key)
	return nil
}

func (b *memoryBucket) Copy(_ context.Context, key, dstBucket, dstKey string, policy RetryPolicy) error {
	b.client.mu.Lock()
	defer b.client.mu.Unlock()
	b.record("copy", key, policy)
	obj, ok := b.visible(key)
	if !ok {
		return b.notExist(key)
	}
	dst, ok := b.client.buckets[dstBucket]
	if !ok {
		return &PathError{Op: "memory", Path: dstBucket, Err: ErrNoBucket}
	}
	dst[dstKey] = &memoryObject{data: slices.Clone(obj.data), updated: time.Now()}
	return nil
}

func (b *memoryBucket) Rename(_ context.Context, key, dstKey string, policy RetryPolicy) error {
	b.client.mu.Lock()
	defer b.client.mu.Unlock()
	b.record("rename", key, policy)
	obj, ok := b.visible(key)
	if !ok {
		return b.notExist(key)
	}
	objects := b.client.buckets[b.name]
	delete(objects, key)
	objects[dstKey] = obj
	return nil
}

func (b *memoryBucket) Compose(_ context.Context, dstKey string, srcKeys []string, policy RetryPolicy) error {
	b.client.mu.Lock()
	defer b.client.mu.Unlock()
	b.record("compose", dstKey, policy)
	var buf []byte
	for _, k := range srcKeys {
		obj, ok := b.visible(k)
		if !ok {
			return b.notExist(k)
		}
		buf = append(buf, obj.data...)
	}
	b.put(dstKey, buf)
	return nil
}

func (b *memoryBucket) List(_ context.Context, q Query) (Listing, error) {
	b.client.mu.Lock()
	defer b.client.mu.Unlock()

	keys := make([]string, 0, len(b.client.buckets[b.name]))
	for k := range b.client.buckets[b.name] {
		if strings.HasPrefix(k, q.Prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	var out Listing
	for _, k := range keys {
		if q.Limit > 0 && out.Len() >= q.Limit {
			break
		}
		obj, ok := b.visible(k)
		if !ok {
			continue
		}
		if q.Delimiter != "" {
			rest := k[len(q.Prefix):]
			if i := strings.Index(rest, q.Delimiter); i >= 0 {
				prefix := q.Prefix + rest[:i+len(q.Delimiter)]
				if n := len(out.Prefixes); n == 0 || out.Prefixes[n-1] != prefix {
					out.Prefixes = append(out.Prefixes, prefix)
				}
				continue
			}
		}
		out.Objects = append(out.Objects, ObjectAttrs{Key: k, Size: int64(len(obj.data)), Updated: obj.updated})
	}
	return out, nil
}
