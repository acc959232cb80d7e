package bitstream

import (
	"bytes"
	"fmt"
	"math"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
)

// Reader consumes an LSB-first bit stream from an immutable byte buffer.
type Reader struct {
	stream *kaitai.Stream
	size   int64
	pos    int64
}

// NewReader creates a reader positioned at bit 0 of data.
func NewReader(data []byte) *Reader {
	return &Reader{
		stream: kaitai.NewStream(bytes.NewReader(data)),
		size:   int64(len(data)) * 8,
	}
}

// Offset returns the current bit offset.
func (r *Reader) Offset() int64 {
	return r.pos
}

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() int64 {
	return r.size - r.pos
}

// ReadBits reads an n-bit unsigned value, 1 <= n <= 64.
func (r *Reader) ReadBits(n int) (uint64, error) {
	if n < 1 || n > 64 {
		return 0, fmt.Errorf("bit count %d out of range", n)
	}
	if err := r.require(int64(n)); err != nil {
		return 0, err
	}

	v, err := r.stream.ReadBitsIntLe(n)
	if err != nil {
		return 0, &InsufficientBitsError{Needed: int64(n), Available: r.Remaining(), Offset: r.pos}
	}
	r.pos += int64(n)
	return v, nil
}

// Align skips padding up to the next multiple of bits.
func (r *Reader) Align(bits int) error {
	if bits <= 1 {
		return nil
	}
	pad := int((int64(bits) - r.pos%int64(bits)) % int64(bits))
	for pad > 0 {
		chunk := min(pad, 64)
		if _, err := r.ReadBits(chunk); err != nil {
			return err
		}
		pad -= chunk
	}
	return nil
}

// ReadBool reads a single bit.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadBits(1)
	return v == 1, err
}

// ReadU8 reads an unsigned 8-bit integer.
func (r *Reader) ReadU8() (uint8, error) {
	v, err := r.ReadBits(8)
	return uint8(v), err
}

// ReadU16 reads a little-endian unsigned 16-bit integer.
func (r *Reader) ReadU16() (uint16, error) {
	v, err := r.ReadBits(16)
	return uint16(v), err
}

// ReadU32 reads a little-endian unsigned 32-bit integer.
func (r *Reader) ReadU32() (uint32, error) {
	v, err := r.ReadBits(32)
	return uint32(v), err
}

// ReadF32 reads an IEEE-754 binary32 value.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadBits(32)
	return math.Float32frombits(uint32(v)), err
}

// ReadBytes reads n whole bytes starting at the current bit offset.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.require(int64(n) * 8); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	for i := range out {
		b, err := r.ReadBits(8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(b)
	}
	return out, nil
}

func (r *Reader) require(bits int64) error {
	if r.Remaining() < bits {
		return &InsufficientBitsError{Needed: bits, Available: r.Remaining(), Offset: r.pos}
	}
	return nil
}
