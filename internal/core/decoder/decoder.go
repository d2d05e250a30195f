// Package decoder dissects raw Ethernet frames into validated IPv4/TCP views.
package decoder

import (
	"firestige.xyz/responder/internal/core"
	"firestige.xyz/responder/internal/filter"
)

// Config configures a Dissector.
type Config struct {
	// Filter selects interesting frames. Nil accepts every TCP frame.
	Filter filter.Filter
}

// Dissector turns captured frames into dispositions. It holds no mutable
// state and is safe for concurrent use.
type Dissector struct {
	filter filter.Filter
}

func NewDissector(cfg Config) *Dissector {
	f := cfg.Filter
	if f == nil {
		f = filter.NewChain()
	}
	return &Dissector{filter: f}
}

// Dissect validates raw layer by layer. The checks run in a fixed order and
// the first failing one decides the outcome; an Accept carries views into
// raw.Data that stay valid until the buffer is reused.
func (d *Dissector) Dissect(raw core.RawFrame) core.Disposition {
	data := raw.Bytes()

	eth, ipData, err := dissectEthernet(data)
	if err != nil {
		return core.Reject(err)
	}

	ip, segment, err := dissectIPv4(ipData)
	if err != nil {
		return core.Reject(err)
	}

	if ip.Protocol() != core.ProtocolTCP {
		return core.Pass(core.PassNotTCP)
	}

	tcp, err := core.ParseTCP(segment)
	if err != nil {
		return core.Reject(err)
	}

	if !d.filter.Interesting(ip, tcp) {
		return core.Pass(core.PassFiltered)
	}

	payload := segment[tcp.HeaderLen():]
	if len(payload) > 0 {
		return core.Pass(core.PassPayload)
	}

	if err := verifyTCP(ip, segment); err != nil {
		return core.Reject(err)
	}

	return core.Accept(&core.ParsedFrame{
		Frame:     data[:core.EthernetHeaderLen+ip.TotalLen()],
		Ethernet:  eth,
		IP:        ip,
		TCP:       tcp,
		Payload:   payload,
		Timestamp: raw.Timestamp,
	})
}
