// Package bitstream implements the primitive wire codecs of the save format.
//
// Bits are packed least-significant-bit first within each byte and multi-byte
// integers are little-endian, so value bit i of a field written at stream bit
// offset o lands at stream bit o+i. Reader and Writer apply that order
// identically, which is what makes decode/encode round trips byte-exact.
//
// Two composite primitives sit on top of the fixed-width ones:
//
//   - VarInt: 1 byte for values up to 127, otherwise 2 bytes. The low 7 bits go
//     in the first byte, whose bit 7 flags the second byte; the second byte holds
//     bits 7 to 14. Values above 32767 are unrepresentable.
//   - String: a VarInt byte count followed by that many bytes of UTF-8.
package bitstream
