package decoder

import (
	"encoding/binary"

	"firestige.xyz/responder/internal/core"
	"firestige.xyz/responder/internal/core/checksum"
)

// dissectIPv4 validates the IPv4 header at the start of data and returns it
// with the transport segment bounded by the declared total length, so any
// Ethernet trailer padding is dropped.
func dissectIPv4(data []byte) (core.IPv4Header, []byte, error) {
	if len(data) < 1 {
		return nil, nil, core.ErrTruncated
	}
	if data[0]>>4 != 4 {
		return nil, nil, core.ErrBadVersion
	}

	if len(data) < core.IPv4HeaderMinLen {
		return nil, nil, core.ErrTruncated
	}
	hl := int(data[0]&0x0F) * 4
	if hl < core.IPv4HeaderMinLen {
		return nil, nil, core.ErrHeaderTooShort
	}
	// Total length lives in the fixed header, so it is judged before the
	// options are required to be present.
	total := int(binary.BigEndian.Uint16(data[2:4]))
	if total < hl {
		return nil, nil, core.ErrBadTotalLength
	}
	if len(data) < total {
		return nil, nil, core.ErrTruncated
	}

	ip, err := core.ParseIPv4(data)
	if err != nil {
		return nil, nil, err
	}
	segment := data[hl:total:total]
	if len(segment) < core.TCPHeaderMinLen {
		return nil, nil, core.ErrSegmentTooShort
	}

	if !checksum.VerifyIP(ip) {
		return nil, nil, core.ErrIPChecksumMismatch
	}
	return ip, segment, nil
}
