package phisave

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/twinfer/phisave/pkg/binschema"
	"github.com/twinfer/phisave/pkg/bitstream"
	"github.com/twinfer/phisave/pkg/canonical"
	"github.com/twinfer/phisave/pkg/codecerr"
)

// Codec converts records between wire bytes and canonical forms.
type Codec struct {
	logger  *slog.Logger
	options options
}

type options struct {
	logger  *slog.Logger
	strings bitstream.StringPolicy
}

// Option configures a Codec.
type Option func(*options)

// WithLogger sets the logger used for debug tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStringPolicy selects strict or lossy UTF-8 decoding of string fields.
func WithStringPolicy(p bitstream.StringPolicy) Option {
	return func(o *options) {
		o.strings = p
	}
}

func defaultOptions() options {
	return options{
		logger:  slog.Default(),
		strings: bitstream.Strict,
	}
}

// New creates a Codec.
func New(opts ...Option) *Codec {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	return &Codec{
		logger:  options.logger.With("component", "phisave"),
		options: options,
	}
}

var defaultCodec = sync.OnceValue(func() *Codec { return New() })

// ParseMsgpack parses raw record bytes with the shared Codec.
func ParseMsgpack(rt RecordType, data []byte) ([]byte, error) {
	return defaultCodec().ParseMsgpack(context.Background(), rt, data)
}

// BuildMsgpack builds raw record bytes with the shared Codec.
func BuildMsgpack(rt RecordType, data []byte) ([]byte, error) {
	return defaultCodec().BuildMsgpack(context.Background(), rt, data)
}

// Parse decodes raw bytes and returns the canonical value, e.g. *canonical.GameKey.
func (c *Codec) Parse(ctx context.Context, rt RecordType, data []byte) (any, error) {
	h, err := lookup(rt)
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "parsing record", "record", rt, "bytes", len(data))
	v, err := h.parse(binschema.ContextWithLogger(ctx, c.logger), data, binschema.DecodeStrings(c.options.strings))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rt, err)
	}
	return v, nil
}

// Build encodes a canonical value, given by value or pointer, to raw bytes.
func (c *Codec) Build(ctx context.Context, rt RecordType, v any) ([]byte, error) {
	h, err := lookup(rt)
	if err != nil {
		return nil, err
	}
	raw, err := h.build(binschema.ContextWithLogger(ctx, c.logger), v)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", rt, err)
	}
	c.logger.DebugContext(ctx, "built record", "record", rt, "bytes", len(raw))
	return raw, nil
}

// ParseWith parses raw bytes and serializes the canonical value with serde.
func (c *Codec) ParseWith(ctx context.Context, rt RecordType, data []byte, serde canonical.Serde) ([]byte, error) {
	v, err := c.Parse(ctx, rt, data)
	if err != nil {
		return nil, err
	}
	out, err := serde.Serialize(v)
	if err != nil {
		return nil, codecerr.Boundary(fmt.Sprintf("serializing %s as %s", rt, serde.Format()), err)
	}
	return out, nil
}

// BuildWith deserializes a canonical value with serde and encodes it to raw bytes.
func (c *Codec) BuildWith(ctx context.Context, rt RecordType, data []byte, serde canonical.Serde) ([]byte, error) {
	h, err := lookup(rt)
	if err != nil {
		return nil, err
	}
	v := h.newCanonical()
	if err := serde.Deserialize(data, v); err != nil {
		return nil, codecerr.Boundary(fmt.Sprintf("deserializing %s from %s", rt, serde.Format()), err)
	}
	return c.Build(ctx, rt, v)
}

func (c *Codec) ParseMsgpack(ctx context.Context, rt RecordType, data []byte) ([]byte, error) {
	return c.ParseWith(ctx, rt, data, canonical.MsgpackSerde{})
}

func (c *Codec) BuildMsgpack(ctx context.Context, rt RecordType, data []byte) ([]byte, error) {
	return c.BuildWith(ctx, rt, data, canonical.MsgpackSerde{})
}

func (c *Codec) ParseJSON(ctx context.Context, rt RecordType, data []byte) ([]byte, error) {
	return c.ParseWith(ctx, rt, data, canonical.JSONSerde{})
}

func (c *Codec) BuildJSON(ctx context.Context, rt RecordType, data []byte) ([]byte, error) {
	return c.BuildWith(ctx, rt, data, canonical.JSONSerde{})
}

// ParseMap returns the canonical value as generic maps. Numbers are float64.
func (c *Codec) ParseMap(ctx context.Context, rt RecordType, data []byte) (map[string]any, error) {
	raw, err := c.ParseJSON(ctx, rt, data)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, codecerr.Boundary("converting canonical value to map", err)
	}
	return m, nil
}

// BuildMap encodes a canonical value given as generic maps.
func (c *Codec) BuildMap(ctx context.Context, rt RecordType, m map[string]any) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, codecerr.Boundary("converting map to canonical value", err)
	}
	return c.BuildJSON(ctx, rt, raw)
}
