package core

import (
	"fmt"
	"strings"
)

// TCPFlags is the TCP flags byte (offset 13 of the TCP header).
type TCPFlags uint8

const (
	FlagFIN TCPFlags = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
	FlagECE
	FlagCWR
)

var flagNames = []struct {
	flag TCPFlags
	name string
}{
	{FlagFIN, "FIN"},
	{FlagSYN, "SYN"},
	{FlagRST, "RST"},
	{FlagPSH, "PSH"},
	{FlagACK, "ACK"},
	{FlagURG, "URG"},
	{FlagECE, "ECE"},
	{FlagCWR, "CWR"},
}

// Has reports whether all bits of f2 are set.
func (f TCPFlags) Has(f2 TCPFlags) bool { return f&f2 == f2 }

func (f TCPFlags) String() string {
	if f == 0 {
		return "NONE"
	}
	parts := make([]string, 0, 2)
	for _, n := range flagNames {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseTCPFlags parses "syn|ack", "SYN,ACK" or "rst". An empty string yields 0.
func ParseTCPFlags(s string) (TCPFlags, error) {
	var f TCPFlags
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' || r == '+' }) {
		tok = strings.ToUpper(strings.TrimSpace(tok))
		found := false
		for _, n := range flagNames {
			if n.name == tok {
				f |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown tcp flag %q", tok)
		}
	}
	return f, nil
}
