package epath

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	elerrors "github.com/randalmurphal/elements/pkg/elements/errors"
	"github.com/randalmurphal/elements/pkg/elements/observability"
)

// ObjectStore serves "scheme://bucket/key" paths from an object store.
//
// The client and bucket handles are created on first use and shared by
// every path the store serves. Directories do not exist on the store: a
// directory is a zero-byte "<key>/" placeholder or any key below it.
type ObjectStore struct {
	dial func(ctx context.Context) (ObjectClient, error)

	clientMu sync.RWMutex
	client   ObjectClient

	bucketMu sync.RWMutex
	buckets  map[string]Bucket

	metadata      RetryPolicy
	upload        RetryPolicy
	appendTimeout time.Duration
	appendPoll    time.Duration
	logger        *slog.Logger
}

// ObjectStoreOption configures an ObjectStore.
type ObjectStoreOption func(*ObjectStore)

// WithMetadataPolicy sets the retry policy for deletes, copies, renames
// and placeholder writes.
func WithMetadataPolicy(p RetryPolicy) ObjectStoreOption {
	return func(s *ObjectStore) {
		s.metadata = p
	}
}

// WithUploadPolicy sets the retry policy for uploads and composes.
func WithUploadPolicy(p RetryPolicy) ObjectStoreOption {
	return func(s *ObjectStore) {
		s.upload = p
	}
}

// WithAppendTimeout bounds how long an append waits for its objects to
// become visible, polling every interval.
func WithAppendTimeout(timeout, interval time.Duration) ObjectStoreOption {
	return func(s *ObjectStore) {
		if timeout > 0 {
			s.appendTimeout = timeout
		}
		if interval > 0 {
			s.appendPoll = interval
		}
	}
}

// WithObjectLogger sets the logger for client initialization and
// best-effort cleanup warnings.
func WithObjectLogger(logger *slog.Logger) ObjectStoreOption {
	return func(s *ObjectStore) {
		s.logger = logger
	}
}

// NewObjectStore returns an object store backend that dials its client on
// first use.
func NewObjectStore(dial func(ctx context.Context) (ObjectClient, error), opts ...ObjectStoreOption) *ObjectStore {
	s := &ObjectStore{
		dial:          dial,
		buckets:       make(map[string]Bucket),
		metadata:      MetadataPolicy,
		upload:        UploadPolicy,
		appendTimeout: 30 * time.Second,
		appendPoll:    100 * time.Millisecond,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Filesystem.
func (*ObjectStore) Name() string { return "gcs" }

// Close drops the cached handles and closes the client if it can be
// closed. The next operation dials again.
func (s *ObjectStore) Close() error {
	s.bucketMu.Lock()
	s.buckets = make(map[string]Bucket)
	s.bucketMu.Unlock()

	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	c := s.client
	s.client = nil
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (s *ObjectStore) getClient(ctx context.Context) (ObjectClient, error) {
	s.clientMu.RLock()
	c := s.client
	s.clientMu.RUnlock()
	if c != nil {
		return c, nil
	}

	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	// Double-check after acquiring write lock
	if s.client != nil {
		return s.client, nil
	}
	c, err := s.dial(ctx)
	if err != nil {
		return nil, elerrors.Configuration(err, "dial object store")
	}
	s.client = c
	observability.LogBackendInit(s.logger, s.Name())
	return c, nil
}

// bucket returns the cached bucket handle, or nil if the bucket does not
// exist. Missing buckets are not cached so they can be created later.
func (s *ObjectStore) bucket(ctx context.Context, name string) (Bucket, error) {
	s.bucketMu.RLock()
	b, ok := s.buckets[name]
	s.bucketMu.RUnlock()
	if ok {
		return b, nil
	}

	c, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}

	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	// Double-check after acquiring write lock
	if b, ok := s.buckets[name]; ok {
		return b, nil
	}
	b, err = c.Bucket(ctx, name)
	if err != nil {
		return nil, err
	}
	if b != nil {
		s.buckets[name] = b
	}
	return b, nil
}

// SplitObjectPath splits "scheme://bucket/key" into bucket and key. The
// key is empty for a bucket root.
func SplitObjectPath(s string) (bucket, key string) {
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	bucket, key, _ = strings.Cut(s, "/")
	return bucket, strings.Trim(key, "/")
}

// locate resolves p to its bucket handle and key.
func (s *ObjectStore) locate(ctx context.Context, p Path) (Bucket, string, error) {
	name, key := SplitObjectPath(p.String())
	b, err := s.bucket(ctx, name)
	return b, key, err
}

// mustLocate is locate for operations that need the bucket to exist.
func (s *ObjectStore) mustLocate(ctx context.Context, op string, p Path) (Bucket, string, error) {
	b, key, err := s.locate(ctx, p)
	if err != nil {
		return nil, "", err
	}
	if b == nil {
		return nil, "", pathErr(op, p, ErrNoBucket)
	}
	return b, key, nil
}

// Open implements Filesystem. Nothing is fetched until the first read.
func (s *ObjectStore) Open(ctx context.Context, p Path) (io.ReadSeekCloser, error) {
	b, key, err := s.mustLocate(ctx, "open", p)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, pathErr("open", p, ErrIsDirectory)
	}
	return newObjectReader(ctx, b, key), nil
}

// Create implements Filesystem. The object is uploaded when the writer is
// closed. Exclusive mode uses a does-not-exist precondition, so a conflict
// surfaces from Close.
func (s *ObjectStore) Create(ctx context.Context, p Path, mode WriteMode) (io.WriteCloser, error) {
	b, key, err := s.mustLocate(ctx, "create", p)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, pathErr("create", p, ErrIsDirectory)
	}
	switch mode {
	case Exclusive:
		return b.NewWriter(ctx, key, s.upload, true)
	case Append:
		if _, err := b.Stat(ctx, key); err == nil {
			return s.newAppendWriter(ctx, b, key)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return b.NewWriter(ctx, key, s.upload, false)
}

// appendWriter emulates append: bytes go to a temporary object that is
// composed onto the target when the writer is closed.
type appendWriter struct {
	io.WriteCloser
	ctx   context.Context
	store *ObjectStore
	b     Bucket
	key   string
	tmp   string
}

func (s *ObjectStore) newAppendWriter(ctx context.Context, b Bucket, key string) (io.WriteCloser, error) {
	tmp := key + ".append-" + uuid.NewString()
	w, err := b.NewWriter(ctx, tmp, s.upload, false)
	if err != nil {
		return nil, err
	}
	return &appendWriter{WriteCloser: w, ctx: ctx, store: s, b: b, key: key, tmp: tmp}, nil
}

func (w *appendWriter) Close() error {
	if err := w.WriteCloser.Close(); err != nil {
		return err
	}
	s := w.store

	// The store may not list freshly written objects yet.
	err := elerrors.Poll(w.ctx, "append "+w.b.Name()+"/"+w.key, s.appendTimeout, s.appendPoll,
		func(ctx context.Context) (bool, error) {
			for _, k := range []string{w.key, w.tmp} {
				if _, err := w.b.Stat(ctx, k); errors.Is(err, fs.ErrNotExist) {
					return false, nil
				} else if err != nil {
					return false, err
				}
			}
			return true, nil
		})
	if err != nil {
		return err
	}

	if err := w.b.Compose(w.ctx, w.key, []string{w.key, w.tmp}, s.upload); err != nil {
		return err
	}

	// Another writer may already have removed the temporary object.
	if err := w.b.Delete(w.ctx, w.tmp, s.metadata); err != nil && !errors.Is(err, fs.ErrNotExist) {
		observability.LogCleanupError(s.logger, w.b.Name()+"/"+w.tmp, err)
	}
	return nil
}

// Exists implements Filesystem.
func (s *ObjectStore) Exists(ctx context.Context, p Path) (bool, error) {
	isFile, err := s.IsFile(ctx, p)
	if err != nil || isFile {
		return isFile, err
	}
	return s.IsDir(ctx, p)
}

// IsFile implements Filesystem.
func (s *ObjectStore) IsFile(ctx context.Context, p Path) (bool, error) {
	b, key, err := s.locate(ctx, p)
	if err != nil || b == nil || key == "" {
		return false, err
	}
	_, err = b.Stat(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// IsDir implements Filesystem. A bucket root is a directory when the
// bucket exists; any other key is one when its placeholder or a key below
// it exists.
func (s *ObjectStore) IsDir(ctx context.Context, p Path) (bool, error) {
	b, key, err := s.locate(ctx, p)
	if err != nil || b == nil {
		return false, err
	}
	if key == "" {
		return true, nil
	}
	if _, err := b.Stat(ctx, key+"/"); err == nil {
		return true, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	listing, err := b.List(ctx, Query{Prefix: key + "/", Limit: 1})
	if err != nil {
		return false, err
	}
	return listing.Len() > 0, nil
}

// Mkdir implements Filesystem by writing the placeholder object.
func (s *ObjectStore) Mkdir(ctx context.Context, p Path) error {
	b, key, err := s.mustLocate(ctx, "mkdir", p)
	if err != nil || key == "" {
		return err
	}
	if _, err := b.Stat(ctx, key+"/"); err == nil {
		return nil
	}
	w, err := b.NewWriter(ctx, key+"/", s.metadata, false)
	if err != nil {
		return err
	}
	return w.Close()
}

// Remove implements Filesystem. The kind of p is decided before anything
// is deleted.
func (s *ObjectStore) Remove(ctx context.Context, p Path, recursive bool) error {
	b, key, err := s.mustLocate(ctx, "remove", p)
	if err != nil {
		return err
	}
	isDir, err := s.IsDir(ctx, p)
	if err != nil {
		return err
	}
	isFile, err := s.IsFile(ctx, p)
	if err != nil {
		return err
	}

	switch {
	case recursive && isDir:
		return s.removeTree(ctx, b, key)
	case recursive && isFile:
		return pathErr("remove", p, ErrNotDirectory)
	case isFile:
		return b.Delete(ctx, key, s.metadata)
	case isDir:
		return s.removeEmptyDir(ctx, p, b, key)
	default:
		return pathErr("remove", p, ErrNotExist)
	}
}

func (s *ObjectStore) removeTree(ctx context.Context, b Bucket, key string) error {
	prefix := ""
	if key != "" {
		prefix = key + "/"
	}
	listing, err := b.List(ctx, Query{Prefix: prefix})
	if err != nil {
		return err
	}
	for _, obj := range listing.Objects {
		if err := b.Delete(ctx, obj.Key, s.metadata); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *ObjectStore) removeEmptyDir(ctx context.Context, p Path, b Bucket, key string) error {
	if key == "" {
		return pathErr("remove", p, ErrIsDirectory)
	}
	listing, err := b.List(ctx, Query{Prefix: key + "/", Limit: 2})
	if err != nil {
		return err
	}
	for _, obj := range listing.Objects {
		if obj.Key != key+"/" {
			return pathErr("remove", p, ErrDirectoryNotEmpty)
		}
	}
	if len(listing.Prefixes) > 0 {
		return pathErr("remove", p, ErrDirectoryNotEmpty)
	}
	err = b.Delete(ctx, key+"/", s.metadata)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Copy implements Filesystem. Single objects within the store are copied
// server-side.
func (s *ObjectStore) Copy(ctx context.Context, src, dst Path, recursive bool) error {
	if recursive || !sameBackend(s, dst) {
		return CrossCopy(ctx, src, dst, recursive)
	}
	b, key, err := s.mustLocate(ctx, "copy", src)
	if err != nil {
		return err
	}
	dstBucket, dstKey := SplitObjectPath(dst.String())
	if key == "" || dstKey == "" {
		return pathErr("copy", src, ErrNotFile)
	}
	return b.Copy(ctx, key, dstBucket, dstKey, s.metadata)
}

// Move implements Filesystem. Within one bucket a single object is
// renamed; across buckets it is copied then deleted.
func (s *ObjectStore) Move(ctx context.Context, src, dst Path, recursive bool) error {
	if recursive || !sameBackend(s, dst) {
		return crossMove(ctx, src, dst, recursive)
	}
	b, key, err := s.mustLocate(ctx, "move", src)
	if err != nil {
		return err
	}
	dstBucket, dstKey := SplitObjectPath(dst.String())
	if key == "" || dstKey == "" {
		return pathErr("move", src, ErrNotFile)
	}
	if dstBucket == b.Name() {
		return b.Rename(ctx, key, dstKey, s.metadata)
	}
	if err := b.Copy(ctx, key, dstBucket, dstKey, s.metadata); err != nil {
		return err
	}
	return b.Delete(ctx, key, s.metadata)
}

// Size implements Filesystem.
func (s *ObjectStore) Size(ctx context.Context, p Path) (int64, error) {
	b, key, err := s.mustLocate(ctx, "size", p)
	if err != nil {
		return 0, err
	}
	if key == "" {
		return 0, pathErr("size", p, ErrIsDirectory)
	}
	attrs, err := b.Stat(ctx, key)
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

// Absolute implements Filesystem. Object paths are always absolute.
func (*ObjectStore) Absolute(p Path) (Path, error) {
	return p, nil
}
