package epath

import (
	"context"
	"io"
	"time"
)

// ObjectClient opens buckets of an object store. Implementations must be
// safe for concurrent use.
type ObjectClient interface {
	// Bucket returns a handle to the named bucket, or (nil, nil) when the
	// bucket does not exist.
	Bucket(ctx context.Context, name string) (Bucket, error)
}

// Bucket is the set of object operations the object store backend needs.
// Missing objects are reported with errors wrapping fs.ErrNotExist. Every
// mutation receives the retry policy to apply; there is no implicit retry.
type Bucket interface {
	Name() string

	Stat(ctx context.Context, key string) (ObjectAttrs, error)

	// NewReader reads length bytes from offset; a negative length reads to
	// the end of the object.
	NewReader(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)

	// NewWriter uploads key when the writer is closed. With ifAbsent the
	// upload fails with an error wrapping fs.ErrExist if key exists.
	NewWriter(ctx context.Context, key string, policy RetryPolicy, ifAbsent bool) (io.WriteCloser, error)

	Delete(ctx context.Context, key string, policy RetryPolicy) error

	// Copy copies key server-side to dstKey in dstBucket.
	Copy(ctx context.Context, key, dstBucket, dstKey string, policy RetryPolicy) error

	// Rename moves key to dstKey within the bucket.
	Rename(ctx context.Context, key, dstKey string, policy RetryPolicy) error

	// Compose concatenates srcKeys, in order, into dstKey.
	Compose(ctx context.Context, dstKey string, srcKeys []string, policy RetryPolicy) error

	List(ctx context.Context, q Query) (Listing, error)
}

// ObjectAttrs describes a stored object.
type ObjectAttrs struct {
	Key     string
	Size    int64
	Updated time.Time
}

// Query selects objects for a listing.
type Query struct {
	// Prefix restricts results to keys starting with it.
	Prefix string

	// Delimiter, when "/", folds keys below the next separator into
	// Listing.Prefixes.
	Delimiter string

	// Limit stops the listing after this many entries; 0 means no limit.
	Limit int
}

// Listing is the result of a Query, sorted by key.
type Listing struct {
	Objects  []ObjectAttrs
	Prefixes []string
}

// Len returns the number of entries in the listing.
func (l Listing) Len() int {
	return len(l.Objects) + len(l.Prefixes)
}

// RetryPolicy bounds the retries of one mutating call.
type RetryPolicy struct {
	// Timeout is the overall deadline across attempts.
	Timeout time.Duration

	// Initial, Max and Multiplier shape the exponential backoff.
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// Default retry policies for metadata and upload calls.
var (
	MetadataPolicy = RetryPolicy{Timeout: 10 * time.Second}.withDefaults()
	UploadPolicy   = RetryPolicy{Timeout: 300 * time.Second}.withDefaults()
)

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Initial <= 0 {
		p.Initial = time.Second
	}
	if p.Max <= 0 {
		p.Max = 60 * time.Second
	}
	if p.Multiplier <= 1 {
		p.Multiplier = 2
	}
	return p
}

// WithTimeout applies the policy deadline to ctx.
func (p RetryPolicy) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.Timeout)
}
