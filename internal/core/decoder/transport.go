package decoder

import (
	"firestige.xyz/responder/internal/core"
	"firestige.xyz/responder/internal/core/checksum"
)

// verifyTCP checks the TCP checksum of segment against the IPv4 pseudo-header.
func verifyTCP(ip core.IPv4Header, segment []byte) error {
	if !checksum.VerifyTCP(ip.SrcAddr(), ip.DstAddr(), segment) {
		return core.ErrTCPChecksumMismatch
	}
	return nil
}
