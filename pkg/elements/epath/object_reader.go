package epath

import (
	"context"
	"errors"
	"io"
)

// objectReader is a seekable reader over one object. It opens a ranged
// stream at the current offset on demand and only fetches the object
// size when seeking relative to the end.
type objectReader struct {
	ctx    context.Context
	bucket Bucket
	key    string

	offset int64
	size   int64 // -1 until known
	body   io.ReadCloser
}

func newObjectReader(ctx context.Context, b Bucket, key string) *objectReader {
	return &objectReader{ctx: ctx, bucket: b, key: key, size: -1}
}

func (r *objectReader) Read(p []byte) (int, error) {
	if r.size >= 0 && r.offset >= r.size {
		return 0, io.EOF
	}
	if r.body == nil {
		body, err := r.bucket.NewReader(r.ctx, r.key, r.offset, -1)
		if err != nil {
			return 0, err
		}
		r.body = body
	}
	n, err := r.body.Read(p)
	r.offset += int64(n)
	return n, err
}

func (r *objectReader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.offset + offset
	case io.SeekEnd:
		if r.size < 0 {
			attrs, err := r.bucket.Stat(r.ctx, r.key)
			if err != nil {
				return r.offset, err
			}
			r.size = attrs.Size
		}
		target = r.size + offset
	default:
		return r.offset, errors.New("seek: invalid whence")
	}
	if target < 0 {
		return r.offset, errors.New("seek: negative position")
	}
	if target != r.offset {
		r.closeBody()
		r.offset = target
	}
	return r.offset, nil
}

func (r *objectReader) Close() error {
	return r.closeBody()
}

func (r *objectReader) closeBody() error {
	if r.body == nil {
		return nil
	}
	err := r.body.Close()
	r.body = nil
	return err
}
