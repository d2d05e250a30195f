// Package responder crafts reply frames from accepted handshake segments.
package responder

import (
	"encoding/binary"

	"firestige.xyz/responder/internal/core"
	"firestige.xyz/responder/internal/core/checksum"
)

type options struct {
	flags    *core.TCPFlags
	seq, ack *uint32
	reply    bool
	isn      uint32
}

// Option adjusts a crafted frame.
type Option func(*options)

// WithFlags replaces the TCP flags byte with exactly f.
func WithFlags(f core.TCPFlags) Option {
	return func(o *options) { o.flags = &f }
}

// WithSequence writes fixed sequence and acknowledgment numbers.
func WithSequence(seq, ack uint32) Option {
	return func(o *options) { o.seq, o.ack = &seq, &ack }
}

// WithReplySequence numbers the reply the way a TCP stack answers the
// received segment: the acknowledgment covers the received sequence space
// (SYN and FIN count as one), and the sequence number is the received
// acknowledgment when the ACK bit was set, isn otherwise.
func WithReplySequence(isn uint32) Option {
	return func(o *options) { o.reply, o.isn = true, isn }
}

// Craft returns an independent copy of f with Ethernet, IPv4 and TCP
// addressing reversed and both checksums recomputed. f and the buffer it
// points into are never modified.
func Craft(f *core.ParsedFrame, opts ...Option) core.OwnedFrame {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	out := make(core.OwnedFrame, len(f.Frame))
	copy(out, f.Frame)

	ipOff := core.EthernetHeaderLen
	ipLen := f.IP.HeaderLen()
	tcpOff := ipOff + ipLen

	swap(out[0:6], out[6:12])
	swap(out[ipOff+12:ipOff+16], out[ipOff+16:ipOff+20])
	swap(out[tcpOff:tcpOff+2], out[tcpOff+2:tcpOff+4])

	if o.reply {
		seq, ack := replySequence(f, o.isn)
		o.seq, o.ack = &seq, &ack
	}
	if o.seq != nil {
		binary.BigEndian.PutUint32(out[tcpOff+4:], *o.seq)
		binary.BigEndian.PutUint32(out[tcpOff+8:], *o.ack)
	}
	if o.flags != nil {
		out[tcpOff+13] = byte(*o.flags)
	}

	ip := out[ipOff:tcpOff]
	ip[10], ip[11] = 0, 0
	binary.BigEndian.PutUint16(ip[10:12], checksum.IP(ip))

	segment := out[tcpOff:]
	segment[16], segment[17] = 0, 0
	src, dst := [4]byte(ip[12:16]), [4]byte(ip[16:20])
	binary.BigEndian.PutUint16(segment[16:18], checksum.TCP(src, dst, segment))

	return out
}

func replySequence(f *core.ParsedFrame, isn uint32) (seq, ack uint32) {
	in := f.TCP.Flags()
	span := uint32(f.PayloadLen())
	if in&core.FlagSYN != 0 {
		span++
	}
	if in&core.FlagFIN != 0 {
		span++
	}
	ack = f.TCP.Seq() + span
	if in&core.FlagACK != 0 {
		return f.TCP.Ack(), ack
	}
	return isn, ack
}

func swap(a, b []byte) {
	for i := range a {
		a[i], b[i] = b[i], a[i]
	}
}
