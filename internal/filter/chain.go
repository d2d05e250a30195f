package filter

import "firestige.xyz/responder/internal/core"

// Chain is the logical AND of its filters, evaluated in order. An empty
// chain accepts every frame.
type Chain struct {
	filters []Filter
}

func NewChain(filters ...Filter) *Chain {
	c := &Chain{filters: make([]Filter, 0, len(filters))}
	for _, f := range filters {
		if f != nil {
			c.filters = append(c.filters, f)
		}
	}
	return c
}

// Append adds f to the end of the chain.
func (c *Chain) Append(f Filter) *Chain {
	if f != nil {
		c.filters = append(c.filters, f)
	}
	return c
}

func (c *Chain) GetFilters() []Filter {
	return c.filters
}

func (c *Chain) Interesting(ip core.IPv4Header, tcp core.TCPHeader) bool {
	for _, f := range c.filters {
		if !f.Interesting(ip, tcp) {
			return false
		}
	}
	return true
}
