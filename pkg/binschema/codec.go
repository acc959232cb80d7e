// Package binschema interprets declarative bit-level record layouts.
//
// A layout is a YAML document listing a record's fields in wire order. Each
// field names a primitive (u1, u2, u4, f4, b1, vlq, str) or a nested type and
// may carry byte alignment, a CEL presence predicate over earlier fields, an
// array count (constant, sibling count field or CEL count function), a
// validation rule and an encode-time derivation.
//
// A layout is bound to a Go struct through `bin` field tags:
//
//	type Entry struct {
//	    Version uint8   `bin:"version"`
//	    Extra   *[3]bool `bin:"extra"` // if: version >= 4
//	}
//
//	codec, err := binschema.NewFromYAML[Entry](layout)
//	entry, err := codec.Decode(ctx, raw)
//	raw, err = codec.Encode(ctx, entry)
//
// Binding and expression checks happen once in New, so a layout that
// references a later field or mismatches its Go type fails there rather than
// during decoding.
package binschema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/twinfer/phisave/internal/cel"
	"github.com/twinfer/phisave/pkg/bitstream"
)

// Codec decodes and encodes records of type T with a compiled layout.
// A Codec holds no mutable state and is safe for concurrent use.
type Codec[T any] struct {
	schema  *Schema
	root    *typePlan
	logger  *slog.Logger
	strings bitstream.StringPolicy
}

// New binds schema to T and compiles every expression.
func New[T any](schema *Schema, opts ...Option) (*Codec[T], error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if schema == nil {
		return nil, errors.New("schema cannot be nil")
	}

	pool := options.pool
	if pool == nil {
		var err error
		pool, err = cel.NewExpressionPool()
		if err != nil {
			return nil, fmt.Errorf("creating expression pool: %w", err)
		}
	}

	goType := reflect.TypeFor[T]()
	root, err := newCompiler(schema, pool).compileRoot(goType)
	if err != nil {
		return nil, fmt.Errorf("compiling schema '%s' for %s: %w", schema.Meta.ID, goType, err)
	}

	options.logger.Debug("Compiled record schema", "schema", schema.Meta.ID, "go_type", goType.String(), "fields", len(root.fields))

	return &Codec[T]{
		schema:  schema,
		root:    root,
		logger:  options.logger,
		strings: options.strings,
	}, nil
}

// NewFromYAML parses a layout document and binds it to T.
func NewFromYAML[T any](data []byte, opts ...Option) (*Codec[T], error) {
	schema, err := NewSchemaFromYAML(data)
	if err != nil {
		return nil, err
	}
	return New[T](schema, opts...)
}

// ID returns the layout's meta.id.
func (c *Codec[T]) ID() string {
	return c.schema.Meta.ID
}

// Decode parses data into a new record. No partial record is returned on error.
func (c *Codec[T]) Decode(ctx context.Context, data []byte, opts ...DecodeOption) (*T, error) {
	cfg := decodeConfig{strings: c.strings}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := loggerFrom(ctx, c.logger)
	logger.DebugContext(ctx, "Decoding record", "schema", c.schema.Meta.ID, "bytes", len(data))

	d := &decoder{
		ctx:     ctx,
		r:       bitstream.NewReader(data),
		logger:  logger,
		strings: cfg.strings,
	}

	out := new(T)
	if err := d.decodeStruct(c.root, reflect.ValueOf(out).Elem()); err != nil {
		return nil, err
	}

	if rest := d.r.Remaining(); rest > 0 {
		logger.DebugContext(ctx, "Trailing bits after record", "schema", c.schema.Meta.ID, "bits", rest)
	}
	return out, nil
}

// Encode writes v in wire form. Count and derived fields are recomputed, never copied.
func (c *Codec[T]) Encode(ctx context.Context, v *T) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("encoding '%s': nil record", c.schema.Meta.ID)
	}

	logger := loggerFrom(ctx, c.logger)
	e := &encoder{
		ctx:    ctx,
		w:      bitstream.NewWriter(),
		logger: logger,
	}
	if err := e.encodeStruct(c.root, reflect.ValueOf(v).Elem()); err != nil {
		return nil, err
	}

	out := e.w.Bytes()
	logger.DebugContext(ctx, "Encoded record", "schema", c.schema.Meta.ID, "bytes", len(out))
	return out, nil
}
