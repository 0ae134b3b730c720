// internal/alert/rule.go
package alert

import (
	"github.com/signalnine/threatscope/internal/classify"
	"github.com/signalnine/threatscope/internal/protocol"
)

// Alert severities.
const (
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Stats is everything the rules look at.
type Stats struct {
	Counts      classify.Counts
	HighRiskIPs []protocol.IPInfo
}

// Draft is an alert before the engine stamps its id and time.
type Draft struct {
	Severity    string
	Title       string
	Description string
	IPAddress   string
}

// Rule inspects aggregated statistics and may propose alerts.
type Rule interface {
	Name() string
	Evaluate(s *Stats) []Draft
}
