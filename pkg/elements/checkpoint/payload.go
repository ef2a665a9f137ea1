package checkpoint

import (
	"context"
	"fmt"
	"iter"

	"github.com/randalmurphal/elements/pkg/elements/codec"
	"github.com/randalmurphal/elements/pkg/elements/epath"
)

// Decoder decodes one stored value into v.
type Decoder func(v any) error

// Payload is the stored form of one saveable in a snapshot. Nothing is read
// until Decode or a shard Decoder is called.
type Payload struct {
	key   string
	codec codec.Codec
	file  epath.Path
	parts []epath.Path
}

// Key returns the saveable name the payload belongs to.
func (p Payload) Key() string {
	return p.key
}

// Sharded reports whether the payload was written as a shard sequence.
func (p Payload) Sharded() bool {
	return p.parts != nil
}

// Len returns the number of shards, or 1 for a single payload.
func (p Payload) Len() int {
	if p.Sharded() {
		return len(p.parts)
	}
	return 1
}

// Decode reads a single payload into v.
func (p Payload) Decode(ctx context.Context, v any) error {
	if p.Sharded() {
		return fmt.Errorf("%w: %s has %d shards", ErrSharded, p.key, len(p.parts))
	}
	return decodeFile(ctx, p.codec, p.file, v)
}

// Shards yields a Decoder per shard in ascending index order. Each shard is
// read only when its Decoder is called. A single payload yields itself as
// shard 0.
func (p Payload) Shards(ctx context.Context) iter.Seq2[int, Decoder] {
	parts := p.parts
	if !p.Sharded() {
		parts = []epath.Path{p.file}
	}
	return func(yield func(int, Decoder) bool) {
		for i, part := range parts {
			dec := func(v any) error {
				return decodeFile(ctx, p.codec, part, v)
			}
			if !yield(i, dec) {
				return
			}
		}
	}
}

// ShardValues decodes each shard of p into a fresh T in order. Iteration
// stops after the first error.
func ShardValues[T any](ctx context.Context, p Payload) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, dec := range p.Shards(ctx) {
			var v T
			if err := dec(&v); err != nil {
				yield(v, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

func decodeFile(ctx context.Context, c codec.Codec, p epath.Path, v any) error {
	data, err := p.Read(ctx)
	if err != nil {
		return err
	}
	if err := c.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", p, err)
	}
	return nil
}
