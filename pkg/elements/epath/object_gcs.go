package epath

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSClient is the Google Cloud Storage implementation of ObjectClient.
type GCSClient struct {
	client *storage.Client
}

// DialGCS creates a storage client with application default credentials
// unless opts say otherwise.
func DialGCS(ctx context.Context, opts ...option.ClientOption) (*GCSClient, error) {
	c, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSClient{client: c}, nil
}

// Close releases the underlying client.
func (c *GCSClient) Close() error {
	return c.client.Close()
}

// Bucket implements ObjectClient.
func (c *GCSClient) Bucket(ctx context.Context, name string) (Bucket, error) {
	h := c.client.Bucket(name)
	if _, err := h.Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrBucketNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("bucket %s: %w", name, err)
	}
	return &gcsBucket{client: c.client, name: name, handle: h}, nil
}

type gcsBucket struct {
	client *storage.Client
	name   string
	handle *storage.BucketHandle
}

func (b *gcsBucket) Name() string { return b.name }

// object returns a handle that retries every call under policy.
func (b *gcsBucket) object(bucket *storage.BucketHandle, key string, policy RetryPolicy) *storage.ObjectHandle {
	return bucket.Object(key).Retryer(
		storage.WithBackoff(gax.Backoff{
			Initial:    policy.Initial,
			Max:        policy.Max,
			Multiplier: policy.Multiplier,
		}),
		storage.WithPolicy(storage.RetryAlways),
	)
}

func (b *gcsBucket) Stat(ctx context.Context, key string) (ObjectAttrs, error) {
	attrs, err := b.handle.Object(key).Attrs(ctx)
	if err != nil {
		return ObjectAttrs{}, b.mapErr(key, err)
	}
	return ObjectAttrs{Key: attrs.Name, Size: attrs.Size, Updated: attrs.Updated}, nil
}

func (b *gcsBucket) NewReader(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	r, err := b.handle.Object(key).NewRangeReader(ctx, offset, length)
	if err != nil {
		return nil, b.mapErr(key, err)
	}
	return r, nil
}

func (b *gcsBucket) NewWriter(ctx context.Context, key string, policy RetryPolicy, ifAbsent bool) (io.WriteCloser, error) {
	ctx, cancel := policy.WithTimeout(ctx)
	o := b.object(b.handle, key, policy)
	if ifAbsent {
		o = o.If(storage.Conditions{DoesNotExist: true})
	}
	return &gcsWriter{Writer: o.NewWriter(ctx), cancel: cancel, bucket: b, key: key}, nil
}

// gcsWriter releases the policy deadline once the upload has finished.
type gcsWriter struct {
	*storage.Writer
	cancel context.CancelFunc
	bucket *gcsBucket
	key    string
}

func (w *gcsWriter) Close() error {
	defer w.cancel()
	if err := w.Writer.Close(); err != nil {
		return w.bucket.mapErr(w.key, err)
	}
	return nil
}

func (b *gcsBucket) Delete(ctx context.Context, key string, policy RetryPolicy) error {
	ctx, cancel := policy.WithTimeout(ctx)
	defer cancel()
	return b.mapErr(key, b.object(b.handle, key, policy).Delete(ctx))
}

func (b *gcsBucket) Copy(ctx context.Context, key, dstBucket, dstKey string, policy RetryPolicy) error {
	ctx, cancel := policy.WithTimeout(ctx)
	defer cancel()
	dst := b.object(b.client.Bucket(dstBucket), dstKey, policy)
	_, err := dst.CopierFrom(b.handle.Object(key)).Run(ctx)
	return b.mapErr(key, err)
}

func (b *gcsBucket) Rename(ctx context.Context, key, dstKey string, policy RetryPolicy) error {
	if err := b.Copy(ctx, key, b.name, dstKey, policy); err != nil {
		return err
	}
	return b.Delete(ctx, key, policy)
}

func (b *gcsBucket) Compose(ctx context.Context, dstKey string, srcKeys []string, policy RetryPolicy) error {
	ctx, cancel := policy.WithTimeout(ctx)
	defer cancel()
	srcs := make([]*storage.ObjectHandle, len(srcKeys))
	for i, k := range srcKeys {
		srcs[i] = b.handle.Object(k)
	}
	_, err := b.object(b.handle, dstKey, policy).ComposerFrom(srcs...).Run(ctx)
	return b.mapErr(dstKey, err)
}

func (b *gcsBucket) List(ctx context.Context, q Query) (Listing, error) {
	query := &storage.Query{Prefix: q.Prefix, Delimiter: q.Delimiter}
	if err := query.SetAttrSelection([]string{"Name", "Size", "Updated"}); err != nil {
		return Listing{}, err
	}

	var out Listing
	it := b.handle.Objects(ctx, query)
	for q.Limit <= 0 || out.Len() < q.Limit {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return Listing{}, fmt.Errorf("list %s/%s: %w", b.name, q.Prefix, err)
		}
		if attrs.Prefix != "" {
			out.Prefixes = append(out.Prefixes, attrs.Prefix)
			continue
		}
		out.Objects = append(out.Objects, ObjectAttrs{Key: attrs.Name, Size: attrs.Size, Updated: attrs.Updated})
	}
	return out, nil
}

// mapErr translates storage errors into the fs sentinels used by epath.
func (b *gcsBucket) mapErr(key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return &PathError{Op: "gcs", Path: "gs://" + b.name + "/" + key, Err: fs.ErrNotExist}
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return &PathError{Op: "gcs", Path: "gs://" + b.name + "/" + key, Err: fs.ErrExist}
	}
	return err
}
