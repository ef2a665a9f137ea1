package checkpoint

import (
	"context"
	"fmt"
	"iter"
	"reflect"
)

// Saveable is state that a Checkpoint persists under a registered name.
//
// Save returns either a single value, written as <name><ext>, or a Shards
// sequence whose elements are written as <name>-0000<ext>, <name>-0001<ext>
// and so on in the order produced. Load receives a Payload over whatever
// was written.
type Saveable interface {
	Save(ctx context.Context) (any, error)
	Load(ctx context.Context, p Payload) error
}

// Shards is a single-pass sequence of shard values returned from Save.
// A non-nil error stops the save of that key.
type Shards iter.Seq2[any, error]

// ShardsOf returns a Shards sequence over items.
func ShardsOf[T any](items ...T) Shards {
	return func(yield func(any, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// checker is implemented by adapters that can be misconfigured.
type checker interface {
	check() error
}

// Funcs adapts a pair of functions to Saveable. Both must be set.
type Funcs struct {
	SaveFunc func(ctx context.Context) (any, error)
	LoadFunc func(ctx context.Context, p Payload) error
}

// Save calls SaveFunc.
func (f Funcs) Save(ctx context.Context) (any, error) {
	return f.SaveFunc(ctx)
}

// Load calls LoadFunc.
func (f Funcs) Load(ctx context.Context, p Payload) error {
	return f.LoadFunc(ctx, p)
}

func (f Funcs) check() error {
	if f.SaveFunc == nil || f.LoadFunc == nil {
		return fmt.Errorf("%w: Funcs needs both SaveFunc and LoadFunc", ErrNotSaveable)
	}
	return nil
}

// Value persists the value Ptr points to as a single payload.
type Value[T any] struct {
	Ptr *T
}

// NewValue returns a Value over ptr.
func NewValue[T any](ptr *T) Value[T] {
	return Value[T]{Ptr: ptr}
}

// Save returns a copy of *Ptr.
func (v Value[T]) Save(context.Context) (any, error) {
	return *v.Ptr, nil
}

// Load decodes into a fresh T and stores it only on success.
func (v Value[T]) Load(ctx context.Context, p Payload) error {
	var fresh T
	if err := p.Decode(ctx, &fresh); err != nil {
		return err
	}
	*v.Ptr = fresh
	return nil
}

func (v Value[T]) check() error {
	if v.Ptr == nil {
		return fmt.Errorf("%w: Value has a nil pointer", ErrNotSaveable)
	}
	return nil
}

// fields mirrors named struct fields through a generated struct type so
// every codec sees concrete field types.
type fields struct {
	target reflect.Value
	names  []string
	mirror reflect.Type
	err    error
}

// Fields returns a Saveable that persists the named exported fields of the
// struct ptr points to. Unknown or unexported names make Register fail with
// ErrNotSaveable.
func Fields(ptr any, names ...string) Saveable {
	f := &fields{names: names}
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		f.err = fmt.Errorf("%w: Fields needs a non-nil struct pointer, got %T", ErrNotSaveable, ptr)
		return f
	}
	if len(names) == 0 {
		f.err = fmt.Errorf("%w: Fields needs at least one field name", ErrNotSaveable)
		return f
	}
	f.target = v.Elem()

	seen := make(map[string]bool, len(names))
	mirrored := make([]reflect.StructField, 0, len(names))
	for _, name := range names {
		sf, ok := f.target.Type().FieldByName(name)
		if !ok || !sf.IsExported() || len(sf.Index) != 1 {
			f.err = fmt.Errorf("%w: %s has no direct exported field %q", ErrNotSaveable, f.target.Type(), name)
			return f
		}
		if seen[name] {
			f.err = fmt.Errorf("%w: field %q listed twice", ErrNotSaveable, name)
			return f
		}
		seen[name] = true
		mirrored = append(mirrored, reflect.StructField{
			Name: sf.Name,
			Type: sf.Type,
			Tag:  reflect.StructTag(fmt.Sprintf(`json:%q yaml:%q`, name, name)),
		})
	}
	f.mirror = reflect.StructOf(mirrored)
	return f
}

func (f *fields) check() error {
	return f.err
}

func (f *fields) Save(context.Context) (any, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := reflect.New(f.mirror).Elem()
	for i, name := range f.names {
		out.Field(i).Set(f.target.FieldByName(name))
	}
	return out.Interface(), nil
}

func (f *fields) Load(ctx context.Context, p Payload) error {
	if f.err != nil {
		return f.err
	}
	in := reflect.New(f.mirror)
	if err := p.Decode(ctx, in.Interface()); err != nil {
		return err
	}
	for i, name := range f.names {
		f.target.FieldByName(name).Set(in.Elem().Field(i))
	}
	return nil
}
