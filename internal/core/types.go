package core

import (
	"encoding/binary"
	"net"
	"net/netip"
)

const (
	EthernetHeaderLen = 14
	IPv4HeaderMinLen  = 20
	TCPHeaderMinLen   = 20

	EtherTypeIPv4 = 0x0800
	ProtocolTCP   = 6
)

// EthernetHeader is a read-only view over the first 14 bytes of a frame.
type EthernetHeader []byte

// ParseEthernet returns a view over the Ethernet header at the start of b.
func ParseEthernet(b []byte) (EthernetHeader, error) {
	if len(b) < EthernetHeaderLen {
		return nil, ErrFrameTooShort
	}
	return EthernetHeader(b[:EthernetHeaderLen:EthernetHeaderLen]), nil
}

func (h EthernetHeader) DstMAC() net.HardwareAddr { return net.HardwareAddr(h[0:6]) }
func (h EthernetHeader) SrcMAC() net.HardwareAddr { return net.HardwareAddr(h[6:12]) }
func (h EthernetHeader) EtherType() uint16       { return binary.BigEndian.Uint16(h[12:14]) }

// IPv4Header is a read-only view over an IPv4 header including options.
// Its length always equals HeaderLen().
type IPv4Header []byte

// ParseIPv4 returns a view over the IPv4 header at the start of b. The fixed
// header must be present and IHL must describe a header that fits in b.
func ParseIPv4(b []byte) (IPv4Header, error) {
	if len(b) < IPv4HeaderMinLen {
		return nil, ErrTruncated
	}
	hl := int(b[0]&0x0F) * 4
	if hl < IPv4HeaderMinLen {
		return nil, ErrHeaderTooShort
	}
	if len(b) < hl {
		return nil, ErrTruncated
	}
	return IPv4Header(b[:hl:hl]), nil
}

func (h IPv4Header) Version() uint8    { return h[0] >> 4 }
func (h IPv4Header) HeaderLen() int    { return int(h[0]&0x0F) * 4 }
func (h IPv4Header) TotalLen() int     { return int(binary.BigEndian.Uint16(h[2:4])) }
func (h IPv4Header) ID() uint16        { return binary.BigEndian.Uint16(h[4:6]) }
func (h IPv4Header) TTL() uint8        { return h[8] }
func (h IPv4Header) Protocol() uint8   { return h[9] }
func (h IPv4Header) Checksum() uint16  { return binary.BigEndian.Uint16(h[10:12]) }
func (h IPv4Header) SrcAddr() [4]byte  { return [4]byte(h[12:16]) }
func (h IPv4Header) DstAddr() [4]byte  { return [4]byte(h[16:20]) }
func (h IPv4Header) SrcIP() netip.Addr { return netip.AddrFrom4(h.SrcAddr()) }
func (h IPv4Header) DstIP() netip.Addr { return netip.AddrFrom4(h.DstAddr()) }

// TCPHeader is a read-only view over a TCP header including options.
// Its length always equals HeaderLen().
type TCPHeader []byte

// ParseTCP returns a view over the TCP header at the start of segment.
func ParseTCP(segment []byte) (TCPHeader, error) {
	if len(segment) < TCPHeaderMinLen {
		return nil, ErrSegmentTooShort
	}
	hl := int(segment[12]>>4) * 4
	if hl < TCPHeaderMinLen || len(segment) < hl {
		return nil, ErrTCPHeaderTooShort
	}
	return TCPHeader(segment[:hl:hl]), nil
}

func (h TCPHeader) SrcPort() uint16   { return binary.BigEndian.Uint16(h[0:2]) }
func (h TCPHeader) DstPort() uint16   { return binary.BigEndian.Uint16(h[2:4]) }
func (h TCPHeader) Seq() uint32       { return binary.BigEndian.Uint32(h[4:8]) }
func (h TCPHeader) Ack() uint32       { return binary.BigEndian.Uint32(h[8:12]) }
func (h TCPHeader) HeaderLen() int    { return int(h[12]>>4) * 4 }
func (h TCPHeader) Flags() TCPFlags   { return TCPFlags(h[13]) }
func (h TCPHeader) Window() uint16    { return binary.BigEndian.Uint16(h[14:16]) }
func (h TCPHeader) Checksum() uint16  { return binary.BigEndian.Uint16(h[16:18]) }
