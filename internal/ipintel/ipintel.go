// internal/ipintel/ipintel.go
package ipintel

import (
	"context"
	"strings"
)

// Info is what an intelligence source knows about an address.
type Info struct {
	IsVPN   bool   `json:"is_vpn"`
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
}

// Provider looks up intelligence for an IP. Implementations must not fail:
// an unknown address yields the zero Info.
type Provider interface {
	Lookup(ctx context.Context, ip string) Info
}

// DefaultVPNPrefixes are the hosting ranges the heuristic flags.
var DefaultVPNPrefixes = []string{"185.", "45.", "104."}

// PrefixHeuristic flags addresses by string prefix. It is a placeholder
// with no real backing data and never sets geolocation.
type PrefixHeuristic struct {
	prefixes []string
}

func NewPrefixHeuristic(prefixes ...string) *PrefixHeuristic {
	if len(prefixes) == 0 {
		prefixes = DefaultVPNPrefixes
	}
	return &PrefixHeuristic{prefixes: prefixes}
}

func (p *PrefixHeuristic) Lookup(_ context.Context, ip string) Info {
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(ip, prefix) {
			return Info{IsVPN: true}
		}
	}
	return Info{}
}
