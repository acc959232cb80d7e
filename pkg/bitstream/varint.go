package bitstream

import (
	"fmt"
)

// VarIntMax is the largest value a VarInt can carry.
const VarIntMax = 0x7FFF

// ReadVarInt decodes a 1 or 2 byte VarInt.
func ReadVarInt(r *Reader) (uint16, error) {
	lo, err := r.ReadU8()
	if err != nil {
		return 0, fmt.Errorf("reading varint: %w", err)
	}
	if lo&0x80 == 0 {
		return uint16(lo), nil
	}
	hi, err := r.ReadU8()
	if err != nil {
		return 0, fmt.Errorf("reading varint continuation: %w", err)
	}
	return uint16(lo&0x7F) | uint16(hi)<<7, nil
}

// WriteVarInt encodes v, rejecting values above VarIntMax.
func WriteVarInt(w *Writer, v uint16) error {
	if v > VarIntMax {
		return fmt.Errorf("writing varint %d: %w", v, ErrVarIntOverflow)
	}
	if v <= 0x7F {
		w.WriteU8(uint8(v))
		return nil
	}
	w.WriteU8(uint8(v&0x7F) | 0x80)
	w.WriteU8(uint8(v >> 7))
	return nil
}

// VarIntBitWidth returns the encoded width of v in bits.
func VarIntBitWidth(v uint16) int {
	if v <= 0x7F {
		return 8
	}
	return 16
}
