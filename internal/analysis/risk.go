// internal/analysis/risk.go
package analysis

// Overall risk levels keyed on the total generic threat count.
const (
	RiskLow      = "LOW"
	RiskMedium   = "MEDIUM"
	RiskHigh     = "HIGH"
	RiskCritical = "CRITICAL"
)

// AssessRisk maps total threats onto a level and short description:
// 20+ critical, 10-19 high, 5-9 medium, otherwise low.
func AssessRisk(totalThreats int) (level, description string) {
	switch {
	case totalThreats >= 20:
		return RiskCritical, "Immediate action required"
	case totalThreats >= 10:
		return RiskHigh, "Urgent attention needed"
	case totalThreats >= 5:
		return RiskMedium, "Review recommended"
	default:
		return RiskLow, "Normal activity"
	}
}
