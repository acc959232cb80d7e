// Package record holds the six save record layouts and their typed Go forms.
//
// Each record type has a Decode function and an Encode method:
//
//	progress, err := record.DecodeGameProgress(ctx, raw)
//	raw, err = progress.Encode(ctx)
//
// The layouts live in schemas/*.yaml and are compiled on first use.
package record

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/twinfer/phisave/internal/cel"
	"github.com/twinfer/phisave/pkg/binschema"
)

//go:embed schemas/*.yaml
var schemaFS embed.FS

var sharedPool = sync.OnceValues(cel.NewExpressionPool)

// Layout returns the YAML layout document of a record by schema id.
func Layout(id string) ([]byte, error) {
	data, err := schemaFS.ReadFile("schemas/" + id + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("no layout for record '%s': %w", id, err)
	}
	return data, nil
}

type layout[T any] struct {
	codec func() (*binschema.Codec[T], error)
}

func newLayout[T any](id string) *layout[T] {
	return &layout[T]{
		codec: sync.OnceValues(func() (*binschema.Codec[T], error) {
			data, err := Layout(id)
			if err != nil {
				return nil, err
			}
			pool, err := sharedPool()
			if err != nil {
				return nil, fmt.Errorf("creating expression pool: %w", err)
			}
			return binschema.NewFromYAML[T](data, binschema.WithExpressionPool(pool))
		}),
	}
}

func (l *layout[T]) decode(ctx context.Context, data []byte, opts ...binschema.DecodeOption) (*T, error) {
	codec, err := l.codec()
	if err != nil {
		return nil, err
	}
	return codec.Decode(ctx, data, opts...)
}

func (l *layout[T]) encode(ctx context.Context, v *T) ([]byte, error) {
	codec, err := l.codec()
	if err != nil {
		return nil, err
	}
	return codec.Encode(ctx, v)
}
