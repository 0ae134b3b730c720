// internal/iprisk/aggregator.go
package iprisk

import (
	"context"
	"sort"

	"github.com/signalnine/threatscope/internal/ipintel"
	"github.com/signalnine/threatscope/internal/protocol"
)

// HighRiskThreshold is the request count at which an IP is high risk.
const HighRiskThreshold = 3

const (
	RiskHigh = "high"
	RiskLow  = "low"
)

// Aggregator counts occurrences per IP, remembering first-seen order.
type Aggregator struct {
	counts map[string]int
	order  []string
}

func New() *Aggregator {
	return &Aggregator{counts: make(map[string]int)}
}

// Add records one occurrence of ip. Empty strings are ignored.
func (a *Aggregator) Add(ip string) {
	a.AddN(ip, 1)
}

// AddN records n occurrences of ip.
func (a *Aggregator) AddN(ip string, n int) {
	if ip == "" || n <= 0 {
		return
	}
	if _, seen := a.counts[ip]; !seen {
		a.order = append(a.order, ip)
	}
	a.counts[ip] += n
}

// Merge folds other into a. Addresses first seen in other are ordered
// after those already in a.
func (a *Aggregator) Merge(other *Aggregator) {
	for _, ip := range other.order {
		a.AddN(ip, other.counts[ip])
	}
}

// Len is the number of distinct IPs.
func (a *Aggregator) Len() int { return len(a.order) }

// Count returns the occurrences recorded for ip.
func (a *Aggregator) Count(ip string) int { return a.counts[ip] }

// Summarize returns every IP by descending count (ties keep first-seen
// order) and the high-risk subset.
func (a *Aggregator) Summarize(ctx context.Context, intel ipintel.Provider) protocol.IPAnalysis {
	all := make([]protocol.IPInfo, 0, len(a.order))
	for _, ip := range a.order {
		count := a.counts[ip]
		info := protocol.IPInfo{
			IP:        ip,
			Count:     count,
			RiskLevel: RiskLow,
		}
		if count >= HighRiskThreshold {
			info.RiskLevel = RiskHigh
		}
		if intel != nil {
			found := intel.Lookup(ctx, ip)
			info.IsVPN = found.IsVPN
			if found.Country != "" {
				country := found.Country
				info.Country = &country
			}
			if found.City != "" {
				city := found.City
				info.City = &city
			}
		}
		all = append(all, info)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Count > all[j].Count
	})

	high := make([]protocol.IPInfo, 0)
	for _, info := range all {
		if info.RiskLevel == RiskHigh {
			high = append(high, info)
		}
	}

	return protocol.IPAnalysis{HighRiskIPs: high, AllIPs: all}
}
