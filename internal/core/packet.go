// Package core defines core data structures with zero external dependencies.
package core

import (
	"fmt"
	"time"
)

// RawFrame is one frame pulled from a capture handle. Data is borrowed from the
// driver's receive buffer and is only valid until the next receive.
type RawFrame struct {
	Data       []byte    // Captured bytes, Data[:CaptureLen] is meaningful
	CaptureLen int       // Number of bytes the handle reported
	Timestamp  time.Time // Receive time
}

// Bytes returns the captured portion of the frame.
func (r RawFrame) Bytes() []byte {
	n := r.CaptureLen
	if n < 0 {
		n = 0
	}
	if n > len(r.Data) {
		n = len(r.Data)
	}
	return r.Data[:n]
}

// ParsedFrame is the dissected view of a RawFrame. Every field aliases the
// originating buffer; nothing is copied and nothing may be written through it.
type ParsedFrame struct {
	Frame     []byte // Ethernet header through the end of the declared IPv4 length
	Ethernet  EthernetHeader
	IP        IPv4Header
	TCP       TCPHeader
	Payload   []byte
	Timestamp time.Time
}

// PayloadLen is the number of TCP payload bytes.
func (f *ParsedFrame) PayloadLen() int { return len(f.Payload) }

// Fields describes the frame for structured logging.
func (f *ParsedFrame) Fields() map[string]interface{} {
	return map[string]interface{}{
		"mac_src":  f.Ethernet.SrcMAC().String(),
		"mac_dst":  f.Ethernet.DstMAC().String(),
		"ip_src":   f.IP.SrcIP().String(),
		"ip_dst":   f.IP.DstIP().String(),
		"ip_csum":  fmt.Sprintf("0x%04x", f.IP.Checksum()),
		"sport":    f.TCP.SrcPort(),
		"dport":    f.TCP.DstPort(),
		"seq":      f.TCP.Seq(),
		"ack":      f.TCP.Ack(),
		"flags":    f.TCP.Flags().String(),
		"tcp_csum": fmt.Sprintf("0x%04x", f.TCP.Checksum()),
	}
}

func (f *ParsedFrame) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d [%s] seq=%d ack=%d",
		f.IP.SrcIP(), f.TCP.SrcPort(), f.IP.DstIP(), f.TCP.DstPort(),
		f.TCP.Flags(), f.TCP.Seq(), f.TCP.Ack())
}

// OwnedFrame is an independent, mutable frame ready for transmission.
type OwnedFrame []byte
