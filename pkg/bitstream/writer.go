package bitstream

import (
	"math"
)

// Writer appends to an LSB-first bit buffer.
type Writer struct {
	buf []byte
	pos int64
}

// NewWriter creates an empty writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Offset returns the number of bits written so far.
func (w *Writer) Offset() int64 {
	return w.pos
}

// WriteBits appends the low n bits of v, 1 <= n <= 64.
func (w *Writer) WriteBits(v uint64, n int) {
	for i := 0; i < n; i++ {
		if w.pos%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v>>uint(i)&1 == 1 {
			w.buf[w.pos/8] |= 1 << uint(w.pos%8)
		}
		w.pos++
	}
}

// Align writes zero bits up to the next multiple of bits.
func (w *Writer) Align(bits int) {
	if bits <= 1 {
		return
	}
	pad := int((int64(bits) - w.pos%int64(bits)) % int64(bits))
	for pad > 0 {
		chunk := min(pad, 64)
		w.WriteBits(0, chunk)
		pad -= chunk
	}
}

// WriteBool appends a single bit.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteBits(1, 1)
		return
	}
	w.WriteBits(0, 1)
}

// WriteU8 appends an unsigned 8-bit integer.
func (w *Writer) WriteU8(v uint8) {
	w.WriteBits(uint64(v), 8)
}

// WriteU16 appends a little-endian unsigned 16-bit integer.
func (w *Writer) WriteU16(v uint16) {
	w.WriteBits(uint64(v), 16)
}

// WriteU32 appends a little-endian unsigned 32-bit integer.
func (w *Writer) WriteU32(v uint32) {
	w.WriteBits(uint64(v), 32)
}

// WriteF32 appends an IEEE-754 binary32 value.
func (w *Writer) WriteF32(v float32) {
	w.WriteBits(uint64(math.Float32bits(v)), 32)
}

// WriteBytes appends whole bytes starting at the current bit offset.
func (w *Writer) WriteBytes(p []byte) {
	if w.pos%8 == 0 {
		w.buf = append(w.buf, p...)
		w.pos += int64(len(p)) * 8
		return
	}
	for _, b := range p {
		w.WriteBits(uint64(b), 8)
	}
}

// Bytes returns the written buffer. A trailing partial byte is zero padded.
func (w *Writer) Bytes() []byte {
	return w.buf
}
