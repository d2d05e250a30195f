// Package coretest builds Ethernet/IPv4/TCP frames for tests.
package coretest

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// FrameSpec describes a frame to build. Zero values get sensible defaults.
type FrameSpec struct {
	SrcMAC, DstMAC   net.HardwareAddr
	SrcIP, DstIP     net.IP
	SrcPort, DstPort uint16
	Seq, Ack         uint32
	SYN, ACK, RST    bool
	FIN, PSH         bool
	Window           uint16
	Options          []layers.TCPOption
	IPOptions        []layers.IPv4Option // IHL is derived from their length
	Payload          []byte
	UDP              bool // build a UDP datagram instead of a TCP segment
}

// DefaultSpec returns a SYN from 10.0.0.1:40000 to 10.0.0.2:80.
func DefaultSpec() FrameSpec {
	return FrameSpec{
		SrcMAC:  net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:  net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		SrcIP:   net.IPv4(10, 0, 0, 1),
		DstIP:   net.IPv4(10, 0, 0, 2),
		SrcPort: 40000,
		DstPort: 80,
		Seq:     1000,
		SYN:     true,
		Window:  65535,
	}
}

// RouterAlert is a 4-byte IPv4 option (RFC 2113), enough to grow IHL to 6.
func RouterAlert() layers.IPv4Option {
	return layers.IPv4Option{OptionType: 0x94, OptionLength: 4, OptionData: []byte{0, 0}}
}

// Build serializes spec with correct lengths and checksums. The result never
// contains Ethernet padding: it is exactly 14 + IPv4 total length bytes.
func Build(spec FrameSpec) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       spec.SrcMAC,
		DstMAC:       spec.DstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version: 4,
		IHL:     5,
		TTL:     64,
		Id:      0x1234,
		Flags:   layers.IPv4DontFragment,
		SrcIP:   spec.SrcIP.To4(),
		DstIP:   spec.DstIP.To4(),
		Options: spec.IPOptions,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	var err error
	if spec.UDP {
		ip.Protocol = layers.IPProtocolUDP
		udp := &layers.UDP{SrcPort: layers.UDPPort(spec.SrcPort), DstPort: layers.UDPPort(spec.DstPort)}
		if err = udp.SetNetworkLayerForChecksum(ip); err != nil {
			panic(err)
		}
		err = gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(spec.Payload))
	} else {
		ip.Protocol = layers.IPProtocolTCP
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(spec.SrcPort),
			DstPort: layers.TCPPort(spec.DstPort),
			Seq:     spec.Seq,
			Ack:     spec.Ack,
			SYN:     spec.SYN,
			ACK:     spec.ACK,
			RST:     spec.RST,
			FIN:     spec.FIN,
			PSH:     spec.PSH,
			Window:  spec.Window,
			Options: spec.Options,
		}
		if err = tcp.SetNetworkLayerForChecksum(ip); err != nil {
			panic(err)
		}
		err = gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(spec.Payload))
	}
	if err != nil {
		panic(err)
	}

	out := buf.Bytes()
	total := 14 + (int(out[16])<<8 | int(out[17]))
	if total < len(out) {
		out = out[:total]
	}
	return append([]byte(nil), out...)
}

// SYN returns the default SYN frame.
func SYN() []byte {
	return Build(DefaultSpec())
}

// Pad appends Ethernet trailer bytes up to n.
func Pad(frame []byte, n int) []byte {
	out := append([]byte(nil), frame...)
	for len(out) < n {
		out = append(out, 0)
	}
	return out
}

// Decode parses frame with gopacket for cross-checking.
func Decode(frame []byte) (*layers.IPv4, *layers.TCP) {
	p := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	var ip *layers.IPv4
	var tcp *layers.TCP
	if l := p.Layer(layers.LayerTypeIPv4); l != nil {
		ip = l.(*layers.IPv4)
	}
	if l := p.Layer(layers.LayerTypeTCP); l != nil {
		tcp = l.(*layers.TCP)
	}
	return ip, tcp
}
