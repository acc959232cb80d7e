package binschema

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinfer/phisave/pkg/bitstream"
	"github.com/twinfer/phisave/pkg/codecerr"
)

const primitivesYAML = `
meta:
  id: sample
  bit-endian: le
seq:
  - id: version
    type: u1
  - id: flags
    type: b1
    repeat: expr
    repeat-expr: 3
    align: 8
  - id: name
    type: str
  - id: score
    type: u2
  - id: ratio
    type: f4
`

type sample struct {
	Version uint8   `bin:"version"`
	Flags   [3]bool `bin:"flags"`
	Name    string  `bin:"name"`
	Score   uint16  `bin:"score"`
	Ratio   float32 `bin:"ratio"`
	Note    string
}

func TestPrimitiveLayout(t *testing.T) {
	ctx := context.Background()
	codec, err := NewFromYAML[sample]([]byte(primitivesYAML))
	require.NoError(t, err)
	assert.Equal(t, "sample", codec.ID())

	raw := []byte{
		0x01,           // version
		0x05,           // flags: bit0, bit2, padded to a byte
		0x02, 'a', 'b', // name
		0x02, 0x01, // score 0x0102
		0x00, 0x00, 0x80, 0x3F, // ratio 1.0
	}

	got, err := codec.Decode(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, &sample{Version: 1, Flags: [3]bool{true, false, true}, Name: "ab", Score: 0x0102, Ratio: 1.0}, got)

	encoded, err := codec.Encode(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, raw, encoded)
}

const floatsYAML = `
meta:
  id: floats
seq:
  - id: ratio
    type: f4
  - id: flag
    type: b1
  - id: scaled
    type: f4
  - id: history
    type: f4
    repeat: expr
    repeat-expr: 2
`

type scale float32

type floats struct {
	Ratio   float32   `bin:"ratio"`
	Flag    bool      `bin:"flag"`
	Scaled  scale     `bin:"scaled"`
	History []float32 `bin:"history"`
}

func TestFloatBitsSurvive(t *testing.T) {
	ctx := context.Background()
	codec, err := NewFromYAML[floats]([]byte(floatsYAML))
	require.NoError(t, err)

	raw := []byte{
		0x01, 0x00, 0x80, 0x7F, // ratio: signalling NaN
		0x03, 0x00, 0x00, 0xFF, // flag, then scaled 0xFF800001 shifted by one bit
		0x05, 0x00, 0x00, 0xFF, // history[0] 0x7F800002, shifted
		0x00, 0x00, 0x00, 0x00, // history[1] -0.0, shifted
		0x01,
	}

	got, err := codec.Decode(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x7F800001), math.Float32bits(got.Ratio))
	assert.True(t, got.Flag)
	assert.Equal(t, uint32(0xFF800001), math.Float32bits(float32(got.Scaled)))
	require.Len(t, got.History, 2)
	assert.Equal(t, uint32(0x7F800002), math.Float32bits(got.History[0]))
	assert.Equal(t, uint32(0x80000000), math.Float32bits(got.History[1]))

	encoded, err := codec.Encode(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, raw, encoded)
}

const packedYAML = `
meta:
  id: packed
seq:
  - id: a
    type: b1
  - id: b
    type: b1
    repeat: expr
    repeat-expr: 2
  - id: c
    type: u1
`

type packed struct {
	A bool   `bin:"a"`
	B []bool `bin:"b"`
	C uint8  `bin:"c"`
}

func TestContextLoggerOverridesCodecLogger(t *testing.T) {
	var own, call bytes.Buffer
	debug := &slog.HandlerOptions{Level: slog.LevelDebug}
	codec, err := NewFromYAML[sample]([]byte(primitivesYAML), WithLogger(slog.New(slog.NewTextHandler(&own, debug))))
	require.NoError(t, err)

	ctx := ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&call, debug)))
	got, err := codec.Decode(ctx, []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	_, err = codec.Encode(ctx, got)
	require.NoError(t, err)

	assert.Empty(t, own.String())
	assert.Contains(t, call.String(), "Decoding record")
	assert.Contains(t, call.String(), "Encoded record")
}

func TestUnalignedPacking(t *testing.T) {
	ctx := context.Background()
	codec, err := NewFromYAML[packed]([]byte(packedYAML))
	require.NoError(t, err)

	v := &packed{A: true, B: []bool{false, true}, C: 0xFF}
	raw, err := codec.Encode(ctx, v)
	require.NoError(t, err)
	// a=bit0, b=bits1-2, c=bits 3-10
	assert.Equal(t, []byte{0xFD, 0x07}, raw)

	got, err := codec.Decode(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	t.Run("slice with constant count must match", func(t *testing.T) {
		_, err := codec.Encode(ctx, &packed{B: []bool{true}})
		require.Error(t, err)
		assert.ErrorIs(t, err, codecerr.ErrEncoding)
	})
}

const countFieldYAML = `
meta:
  id: list
seq:
  - id: count
    type: vlq
  - id: items
    type: item
    repeat: field
    repeat-field: count
types:
  item:
    seq:
      - id: value
        type: u1
`

type item struct {
	Value uint8 `bin:"value"`
}

type list struct {
	Count uint16 `bin:"count"`
	Items []item `bin:"items"`
}

func TestCountField(t *testing.T) {
	ctx := context.Background()
	codec, err := NewFromYAML[list]([]byte(countFieldYAML))
	require.NoError(t, err)

	t.Run("decode", func(t *testing.T) {
		got, err := codec.Decode(ctx, []byte{0x02, 0x0A, 0x0B})
		require.NoError(t, err)
		assert.Equal(t, &list{Count: 2, Items: []item{{0x0A}, {0x0B}}}, got)
	})

	t.Run("stale count is recomputed", func(t *testing.T) {
		raw, err := codec.Encode(ctx, &list{Count: 9, Items: []item{{0x0A}, {0x0B}}})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x02, 0x0A, 0x0B}, raw)
	})

	t.Run("count beyond input", func(t *testing.T) {
		_, err := codec.Decode(ctx, []byte{0x05, 0x0A})
		require.Error(t, err)
		assert.ErrorIs(t, err, codecerr.ErrStructural)
	})

	t.Run("empty", func(t *testing.T) {
		raw, err := codec.Encode(ctx, &list{})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00}, raw)
	})
}

const songYAML = `
meta:
  id: song
seq:
  - id: name
    type: str
  - id: length
    type: vlq
    derive: size(levels) * 8 + 2
  - id: unlock
    type: b1
    repeat: expr
    repeat-expr: 5
    align: 8
  - id: levels
    type: u4
    repeat: expr
    repeat-expr: countTrue(unlock)
`

type song struct {
	Name   string   `bin:"name"`
	Length uint16   `bin:"length"`
	Unlock [5]bool  `bin:"unlock"`
	Levels []uint32 `bin:"levels"`
}

func TestCountFunctionAndDerive(t *testing.T) {
	ctx := context.Background()
	codec, err := NewFromYAML[song]([]byte(songYAML))
	require.NoError(t, err)

	raw := []byte{
		0x01, 's', // name
		0x12,                   // length 8*2+2
		0x05,                   // unlock EZ, IN
		0x64, 0x00, 0x00, 0x00, // 100
		0xC8, 0x00, 0x00, 0x00, // 200
	}

	got, err := codec.Decode(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(18), got.Length)
	assert.Equal(t, []uint32{100, 200}, got.Levels)

	got.Length = 0
	encoded, err := codec.Encode(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, raw, encoded)

	t.Run("levels disagree with unlock flags", func(t *testing.T) {
		_, err := codec.Encode(ctx, &song{Name: "s", Unlock: [5]bool{true}, Levels: []uint32{1, 2}})
		require.Error(t, err)
		assert.ErrorIs(t, err, codecerr.ErrEncoding)
		assert.Contains(t, err.Error(), "countTrue(unlock)")
	})
}

const gatedYAML = `
meta:
  id: progress
seq:
  - id: version
    type: u1
    valid:
      min: 3
      message: unsupported version
  - id: base
    type: b1
    repeat: expr
    repeat-expr: 2
    align: 8
  - id: extra
    type: u2
    if: version >= 4
`

type progress struct {
	Version uint8   `bin:"version"`
	Base    [2]bool `bin:"base"`
	Extra   *uint16 `bin:"extra"`
}

func TestVersionGating(t *testing.T) {
	ctx := context.Background()
	codec, err := NewFromYAML[progress]([]byte(gatedYAML))
	require.NoError(t, err)

	extra := uint16(0x1234)

	tests := []struct {
		name    string
		raw     []byte
		want    *progress
		wantErr error
	}{
		{
			name: "version 3 omits extra",
			raw:  []byte{0x03, 0x01},
			want: &progress{Version: 3, Base: [2]bool{true, false}},
		},
		{
			name: "version 4 carries extra",
			raw:  []byte{0x04, 0x01, 0x34, 0x12},
			want: &progress{Version: 4, Base: [2]bool{true, false}, Extra: &extra},
		},
		{
			name:    "version 2 is rejected",
			raw:     []byte{0x02, 0x01},
			wantErr: codecerr.ErrValidation,
		},
		{
			name:    "version 4 truncated",
			raw:     []byte{0x04, 0x01, 0x34},
			wantErr: codecerr.ErrStructural,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.Decode(ctx, tt.raw)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			encoded, err := codec.Encode(ctx, got)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, encoded)
		})
	}

	t.Run("validation error carries reason", func(t *testing.T) {
		_, err := codec.Decode(ctx, []byte{0x02, 0x00})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "version", ve.Field)
		assert.Contains(t, ve.Reason, "unsupported version")
		assert.NotErrorIs(t, err, codecerr.ErrStructural)
	})

	t.Run("encode rejects unsupported version", func(t *testing.T) {
		_, err := codec.Encode(ctx, &progress{Version: 2})
		assert.ErrorIs(t, err, codecerr.ErrValidation)
	})

	t.Run("encode rejects missing gated value", func(t *testing.T) {
		_, err := codec.Encode(ctx, &progress{Version: 4})
		assert.ErrorIs(t, err, codecerr.ErrEncoding)
	})

	t.Run("encode rejects value the version cannot carry", func(t *testing.T) {
		_, err := codec.Encode(ctx, &progress{Version: 3, Extra: &extra})
		assert.ErrorIs(t, err, codecerr.ErrEncoding)
	})
}

func TestValidationExpression(t *testing.T) {
	const layout = `
meta:
  id: even
seq:
  - id: n
    type: u1
    valid:
      expr: _ % 2 == 0
`
	type even struct {
		N uint8 `bin:"n"`
	}

	codec, err := NewFromYAML[even]([]byte(layout))
	require.NoError(t, err)

	_, err = codec.Decode(context.Background(), []byte{0x04})
	assert.NoError(t, err)

	_, err = codec.Decode(context.Background(), []byte{0x03})
	assert.ErrorIs(t, err, codecerr.ErrValidation)
}

func TestSchemaErrors(t *testing.T) {
	type twoBytes struct {
		A *uint8 `bin:"a"`
		B uint8  `bin:"b"`
	}
	type plainA struct {
		A uint8 `bin:"a"`
		B uint8 `bin:"b"`
	}
	type counted struct {
		Items []uint8 `bin:"items"`
		N     uint8   `bin:"n"`
	}
	type wrongKind struct {
		A uint16 `bin:"a"`
	}
	type loop struct {
		Next []loop `bin:"next"`
	}

	tests := []struct {
		name   string
		layout string
		build  func([]byte) error
		msg    string
	}{
		{
			name: "forward reference in predicate",
			layout: `
meta: {id: fwd}
seq:
  - {id: a, type: u1, if: b > 0}
  - {id: b, type: u1}
`,
			build: func(y []byte) error { _, err := NewFromYAML[twoBytes](y); return err },
			msg:   "undeclared reference",
		},
		{
			name: "conditional field not a pointer",
			layout: `
meta: {id: cond}
seq:
  - {id: b, type: u1}
  - {id: a, type: u1, if: b > 0}
`,
			build: func(y []byte) error { _, err := NewFromYAML[plainA](y); return err },
			msg:   "must be a pointer",
		},
		{
			name: "count field declared after its array",
			layout: `
meta: {id: cnt}
seq:
  - {id: items, type: u1, repeat: field, repeat-field: n}
  - {id: n, type: u1}
`,
			build: func(y []byte) error { _, err := NewFromYAML[counted](y); return err },
			msg:   "not an earlier field",
		},
		{
			name: "go kind mismatch",
			layout: `
meta: {id: kind}
seq:
  - {id: a, type: u1}
`,
			build: func(y []byte) error { _, err := NewFromYAML[wrongKind](y); return err },
			msg:   "cannot bind",
		},
		{
			name: "missing tag",
			layout: `
meta: {id: tag}
seq:
  - {id: z, type: u1}
`,
			build: func(y []byte) error { _, err := NewFromYAML[wrongKind](y); return err },
			msg:   "no field tagged",
		},
		{
			name: "circular type",
			layout: `
meta: {id: loop}
seq:
  - {id: next, type: loop, repeat: expr, repeat-expr: 1}
types:
  loop:
    seq:
      - {id: next, type: loop, repeat: expr, repeat-expr: 1}
`,
			build: func(y []byte) error { _, err := NewFromYAML[loop](y); return err },
			msg:   "circular type dependency",
		},
		{
			name: "unknown type",
			layout: `
meta: {id: unk}
seq:
  - {id: a, type: u9}
`,
			build: func(y []byte) error { _, err := NewFromYAML[wrongKind](y); return err },
			msg:   "unknown type",
		},
		{
			name: "big-endian bits",
			layout: `
meta: {id: be, bit-endian: be}
seq:
  - {id: a, type: u2}
`,
			build: func(y []byte) error { _, err := NewFromYAML[wrongKind](y); return err },
			msg:   "unsupported bit-endian",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build([]byte(tt.layout))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLossyStrings(t *testing.T) {
	const layout = `
meta: {id: text}
seq:
  - {id: s, type: str}
`
	type text struct {
		S string `bin:"s"`
	}
	raw := []byte{0x01, 0x80}

	strict, err := NewFromYAML[text]([]byte(layout))
	require.NoError(t, err)
	_, err = strict.Decode(context.Background(), raw)
	assert.ErrorIs(t, err, bitstream.ErrInvalidUTF8)

	got, err := strict.Decode(context.Background(), raw, DecodeStrings(bitstream.Lossy))
	require.NoError(t, err)
	assert.Equal(t, "�", got.S)

	lossy, err := NewFromYAML[text]([]byte(layout), WithStringPolicy(bitstream.Lossy))
	require.NoError(t, err)
	got, err = lossy.Decode(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "�", got.S)
}

func TestConcurrentUse(t *testing.T) {
	codec, err := NewFromYAML[song]([]byte(songYAML))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(score uint32) {
			defer wg.Done()
			in := &song{Name: "x", Unlock: [5]bool{false, false, false, true}, Levels: []uint32{score}}
			raw, err := codec.Encode(context.Background(), in)
			if err != nil {
				errs <- err
				return
			}
			out, err := codec.Decode(context.Background(), raw)
			if err != nil {
				errs <- err
				return
			}
			if out.Levels[0] != score {
				errs <- assert.AnError
			}
		}(uint32(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestDecodeHonoursCancellation(t *testing.T) {
	codec, err := NewFromYAML[sample]([]byte(primitivesYAML))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = codec.Decode(ctx, []byte{0x01})
	assert.ErrorIs(t, err, context.Canceled)
}
