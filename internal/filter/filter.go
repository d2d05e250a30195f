// Package filter decides which well-formed TCP frames are worth answering.
package filter

import (
	"net/netip"

	"firestige.xyz/responder/internal/core"
)

// Filter inspects the addressing of a dissected frame. It runs before any
// checksum or payload work, so it must only look at header fields.
type Filter interface {
	Interesting(ip core.IPv4Header, tcp core.TCPHeader) bool
}

// Selection matches frames to or from one TCP port whose addresses are
// not on the exclusion list.
type Selection struct {
	port     uint16
	excluded map[[4]byte]struct{}
}

// NewSelection builds a Selection. A port of 0 matches every port.
func NewSelection(port uint16, excluded []netip.Addr) *Selection {
	s := &Selection{
		port:     port,
		excluded: make(map[[4]byte]struct{}, len(excluded)),
	}
	for _, a := range excluded {
		if a.Is4() || a.Is4In6() {
			s.excluded[a.Unmap().As4()] = struct{}{}
		}
	}
	return s
}

func (s *Selection) Interesting(ip core.IPv4Header, tcp core.TCPHeader) bool {
	if s.port != 0 && tcp.SrcPort() != s.port && tcp.DstPort() != s.port {
		return false
	}
	if _, ok := s.excluded[ip.SrcAddr()]; ok {
		return false
	}
	if _, ok := s.excluded[ip.DstAddr()]; ok {
		return false
	}
	return true
}

// Port returns the selected port, 0 meaning any.
func (s *Selection) Port() uint16 { return s.port }

// Excludes reports whether addr is on the exclusion list.
func (s *Selection) Excludes(addr netip.Addr) bool {
	if !addr.Is4() && !addr.Is4In6() {
		return false
	}
	_, ok := s.excluded[addr.Unmap().As4()]
	return ok
}

// FlagMask matches frames carrying at least one of its flags. A zero mask
// matches everything.
type FlagMask core.TCPFlags

func (m FlagMask) Interesting(_ core.IPv4Header, tcp core.TCPHeader) bool {
	return m == 0 || tcp.Flags()&core.TCPFlags(m) != 0
}
