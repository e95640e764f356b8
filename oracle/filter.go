package oracle

import "flight-oracles/pool"

// Eligible returns, in pool order, the identities whose index set holds selector.
func Eligible(p *pool.Pool, selector uint8) []pool.Identity {
	var out []pool.Identity
	for id := range p.All() {
		if id.Indexes.Contains(selector) {
			out = append(out, id)
		}
	}
	return out
}
