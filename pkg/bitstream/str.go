package bitstream

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// StringPolicy selects how invalid UTF-8 is handled on decode.
type StringPolicy int

const (
	// Strict rejects invalid UTF-8 with ErrInvalidUTF8.
	Strict StringPolicy = iota
	// Lossy replaces invalid sequences with U+FFFD.
	Lossy
)

func (p StringPolicy) String() string {
	switch p {
	case Strict:
		return "strict"
	case Lossy:
		return "lossy"
	default:
		return fmt.Sprintf("StringPolicy(%d)", int(p))
	}
}

// ParseStringPolicy maps "strict" or "lossy" to a policy.
func ParseStringPolicy(s string) (StringPolicy, error) {
	switch s {
	case "", "strict":
		return Strict, nil
	case "lossy":
		return Lossy, nil
	default:
		return Strict, fmt.Errorf("unknown string policy '%s'", s)
	}
}

// ReadString decodes a VarInt length followed by that many bytes.
func ReadString(r *Reader, policy StringPolicy) (string, error) {
	offset := r.Offset()
	n, err := ReadVarInt(r)
	if err != nil {
		return "", fmt.Errorf("reading string length: %w", err)
	}
	raw, err := r.ReadBytes(int(n))
	if err != nil {
		return "", fmt.Errorf("reading %d string bytes: %w", n, err)
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	if policy == Strict {
		return "", fmt.Errorf("string at bit offset %d: %w", offset, ErrInvalidUTF8)
	}
	fixed, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("replacing invalid utf-8: %w", err)
	}
	return string(fixed), nil
}

// WriteString encodes s as a VarInt length and its bytes.
func WriteString(w *Writer, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("writing string: %w", ErrInvalidUTF8)
	}
	if len(s) > VarIntMax {
		return fmt.Errorf("writing string of %d bytes: %w", len(s), ErrVarIntOverflow)
	}
	if err := WriteVarInt(w, uint16(len(s))); err != nil {
		return err
	}
	w.WriteBytes([]byte(s))
	return nil
}

// StringBitWidth returns the encoded width of s in bits.
func StringBitWidth(s string) int {
	if len(s) > VarIntMax {
		return 16 + len(s)*8
	}
	return VarIntBitWidth(uint16(len(s))) + len(s)*8
}
