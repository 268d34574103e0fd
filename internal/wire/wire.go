// Package wire implements the fixed-width big-endian codec shared by the
// control and data protocols: 16- and 32-bit unsigned integer encode/decode
// and the one's-complement 16-bit checksum used by Segment framing.
package wire

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned by the decode helpers when fewer bytes are
// available than the field being decoded requires.
var ErrShortBuffer = errors.New("wire: buffer too short")

// EncodeUint16 appends the big-endian encoding of v to dst.
func EncodeUint16(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

// EncodeUint32 appends the big-endian encoding of v to dst.
func EncodeUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

// DecodeUint16 reads a big-endian uint16 from the front of b.
func DecodeUint16(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, ErrShortBuffer
	}
	return binary.BigEndian.Uint16(b), nil
}

// DecodeUint32 reads a big-endian uint32 from the front of b.
func DecodeUint32(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, ErrShortBuffer
	}
	return binary.BigEndian.Uint32(b), nil
}

// Checksum16 computes the one's-complement 16-bit Internet checksum over b:
// sum of big-endian 16-bit words (the final odd byte padded with a zero
// low byte), carries folded back into the low 16 bits, then complemented.
func Checksum16(b []byte) uint16 {
	var sum uint32
	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if n%2 == 1 {
		sum += uint32(b[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}
