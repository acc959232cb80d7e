package bitstream

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinfer/phisave/pkg/codecerr"
)

func TestBitOrder(t *testing.T) {
	w := NewWriter()
	w.WriteBool(true)  // bit 0
	w.WriteBool(false) // bit 1
	w.WriteBool(true)  // bit 2
	w.WriteBits(0b11, 2)
	w.Align(8)
	w.WriteU16(0x1234)

	assert.Equal(t, []byte{0x1D, 0x34, 0x12}, w.Bytes())

	r := NewReader(w.Bytes())
	b0, err := r.ReadBool()
	require.NoError(t, err)
	b1, err := r.ReadBool()
	require.NoError(t, err)
	b2, err := r.ReadBool()
	require.NoError(t, err)
	pair, err := r.ReadBits(2)
	require.NoError(t, err)
	require.NoError(t, r.Align(8))
	u, err := r.ReadU16()
	require.NoError(t, err)

	assert.True(t, b0)
	assert.False(t, b1)
	assert.True(t, b2)
	assert.Equal(t, uint64(3), pair)
	assert.Equal(t, uint16(0x1234), u)
	assert.Equal(t, int64(24), r.Offset())
	assert.Equal(t, int64(0), r.Remaining())
}

func TestUnalignedMultiByte(t *testing.T) {
	w := NewWriter()
	w.WriteBool(true)
	w.WriteU8(0xFF)
	w.WriteU32(0xDEADBEEF)
	w.WriteF32(1.5)

	r := NewReader(w.Bytes())
	b, err := r.ReadBool()
	require.NoError(t, err)
	u8, err := r.ReadU8()
	require.NoError(t, err)
	u32, err := r.ReadU32()
	require.NoError(t, err)
	f, err := r.ReadF32()
	require.NoError(t, err)

	assert.True(t, b)
	assert.Equal(t, uint8(0xFF), u8)
	assert.Equal(t, uint32(0xDEADBEEF), u32)
	assert.Equal(t, float32(1.5), f)
	// 1 + 8 + 32 + 32 bits, padded to 10 bytes
	assert.Len(t, w.Bytes(), 10)
}

func TestF32Layout(t *testing.T) {
	w := NewWriter()
	w.WriteF32(1.0)
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3F}, w.Bytes())

	r := NewReader([]byte{0x00, 0x00, 0xC0, 0x7F})
	f, err := r.ReadF32()
	require.NoError(t, err)
	assert.True(t, math.IsNaN(float64(f)))
}

func TestInsufficientBits(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, err := r.ReadBits(3)
	require.NoError(t, err)

	_, err = r.ReadU8()
	require.Error(t, err)

	var ib *InsufficientBitsError
	require.ErrorAs(t, err, &ib)
	assert.Equal(t, int64(8), ib.Needed)
	assert.Equal(t, int64(5), ib.Available)
	assert.Equal(t, int64(3), ib.Offset)
	assert.ErrorIs(t, err, codecerr.ErrStructural)
	assert.Equal(t, codecerr.KindStructural, codecerr.KindOf(err))
}

func TestVarInt(t *testing.T) {
	tests := []struct {
		name    string
		value   uint16
		encoded []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"one byte max", 127, []byte{0x7F}},
		{"two byte min", 128, []byte{0x80, 0x01}},
		{"mixed", 300, []byte{0xAC, 0x02}},
		{"max", 32767, []byte{0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter()
			require.NoError(t, WriteVarInt(w, tt.value))
			assert.Equal(t, tt.encoded, w.Bytes())
			assert.Equal(t, len(tt.encoded)*8, VarIntBitWidth(tt.value))

			got, err := ReadVarInt(NewReader(tt.encoded))
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestVarIntFullRange(t *testing.T) {
	for n := 0; n <= VarIntMax; n++ {
		w := NewWriter()
		require.NoError(t, WriteVarInt(w, uint16(n)))
		got, err := ReadVarInt(NewReader(w.Bytes()))
		require.NoError(t, err)
		if uint16(n) != got {
			t.Fatalf("varint %d decoded as %d", n, got)
		}
	}
}

func TestVarIntErrors(t *testing.T) {
	t.Run("missing continuation byte", func(t *testing.T) {
		_, err := ReadVarInt(NewReader([]byte{0x80}))
		require.Error(t, err)
		assert.ErrorIs(t, err, codecerr.ErrStructural)
	})

	t.Run("overflow", func(t *testing.T) {
		w := NewWriter()
		err := WriteVarInt(w, 32768)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrVarIntOverflow)
		assert.ErrorIs(t, err, codecerr.ErrEncoding)
		assert.NotErrorIs(t, err, ErrInvalidUTF8)
		assert.Empty(t, w.Bytes())
	})
}

func TestString(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		w := NewWriter()
		require.NoError(t, WriteString(w, "Phigros"))
		assert.Equal(t, append([]byte{0x07}, "Phigros"...), w.Bytes())
		assert.Equal(t, 64, StringBitWidth("Phigros"))

		got, err := ReadString(NewReader(w.Bytes()), Strict)
		require.NoError(t, err)
		assert.Equal(t, "Phigros", got)
	})

	t.Run("unaligned", func(t *testing.T) {
		w := NewWriter()
		w.WriteBool(true)
		require.NoError(t, WriteString(w, "日本"))

		r := NewReader(w.Bytes())
		_, err := r.ReadBool()
		require.NoError(t, err)
		got, err := ReadString(r, Strict)
		require.NoError(t, err)
		assert.Equal(t, "日本", got)
	})

	t.Run("strict rejects lone continuation byte", func(t *testing.T) {
		_, err := ReadString(NewReader([]byte{0x01, 0x80}), Strict)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidUTF8)
		assert.ErrorIs(t, err, codecerr.ErrEncoding)
		assert.NotErrorIs(t, err, codecerr.ErrStructural)
	})

	t.Run("lossy replaces invalid bytes", func(t *testing.T) {
		got, err := ReadString(NewReader([]byte{0x03, 'a', 0x80, 'b'}), Lossy)
		require.NoError(t, err)
		assert.Equal(t, "a�b", got)
	})

	t.Run("truncated payload", func(t *testing.T) {
		_, err := ReadString(NewReader([]byte{0x05, 'a', 'b'}), Strict)
		require.Error(t, err)
		var ib *InsufficientBitsError
		require.ErrorAs(t, err, &ib)
		assert.Equal(t, int64(40), ib.Needed)
		assert.Equal(t, int64(16), ib.Available)
	})

	t.Run("encode rejects invalid utf-8", func(t *testing.T) {
		err := WriteString(NewWriter(), string([]byte{0xFF}))
		assert.ErrorIs(t, err, ErrInvalidUTF8)
	})
}

func TestParseStringPolicy(t *testing.T) {
	p, err := ParseStringPolicy("lossy")
	require.NoError(t, err)
	assert.Equal(t, Lossy, p)

	p, err = ParseStringPolicy("")
	require.NoError(t, err)
	assert.Equal(t, Strict, p)

	_, err = ParseStringPolicy("latin1")
	assert.Error(t, err)
}
