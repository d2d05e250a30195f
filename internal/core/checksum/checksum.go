// Package checksum implements the RFC 1071 Internet checksum for IPv4 headers
// and TCP segments.
package checksum

import "encoding/binary"

// sum adds b to the running 32-bit accumulator as big-endian 16-bit words.
// A trailing odd byte is treated as the high byte of a zero-padded word.
func sum(acc uint32, b []byte) uint32 {
	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		acc += uint32(binary.BigEndian.Uint16(b[i:]))
	}
	if n%2 == 1 {
		acc += uint32(b[n-1]) << 8
	}
	return acc
}

// fold reduces the accumulator to 16 bits with end-around carry and
// returns its complement.
func fold(acc uint32) uint16 {
	for acc>>16 != 0 {
		acc = (acc & 0xffff) + (acc >> 16)
	}
	return ^uint16(acc)
}

// IP returns the checksum over b. Callers zero the checksum field first
// when computing, or leave it in place when verifying.
func IP(b []byte) uint16 {
	return fold(sum(0, b))
}

// TCP returns the checksum over the IPv4 pseudo-header (src, dst, zero,
// protocol 6, segment length) followed by segment.
func TCP(src, dst [4]byte, segment []byte) uint16 {
	var acc uint32
	acc = sum(acc, src[:])
	acc = sum(acc, dst[:])
	acc += 6
	acc += uint32(len(segment))
	return fold(sum(acc, segment))
}

// VerifyIP reports whether an IPv4 header, checksum field included, sums to zero.
func VerifyIP(header []byte) bool {
	return IP(header) == 0
}

// VerifyTCP reports whether segment, checksum field included, is valid for
// the given addresses.
func VerifyTCP(src, dst [4]byte, segment []byte) bool {
	return TCP(src, dst, segment) == 0
}
