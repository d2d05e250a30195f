package decoder

import "firestige.xyz/responder/internal/core"

// dissectEthernet returns the Ethernet header and everything after it.
// Only untagged IPv4 frames are supported.
func dissectEthernet(data []byte) (core.EthernetHeader, []byte, error) {
	eth, err := core.ParseEthernet(data)
	if err != nil {
		return nil, nil, err
	}
	if eth.EtherType() != core.EtherTypeIPv4 {
		return nil, nil, core.ErrNotIPv4
	}
	return eth, data[core.EthernetHeaderLen:], nil
}
