// internal/cvss/cvss.go
package cvss

import (
	"fmt"
	"math"

	"github.com/signalnine/threatscope/internal/model"
)

// Severity is the qualitative band for a 0-10 score.
type Severity string

const (
	SeverityNone     Severity = "None"
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

const (
	// AggregateVector marks a score computed over several threat types.
	AggregateVector = "CVSS:3.1/AGGREGATE"
	// NoImpactVector is reported when nothing was detected.
	NoImpactVector = "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:N/I:N/A:N"

	maxScore = 10.0
)

// Score is a base score with its band, vector and explanation.
type Score struct {
	BaseScore    float64  `json:"base_score"`
	Severity     Severity `json:"severity"`
	VectorString string   `json:"vector_string"`
	Explanation  string   `json:"explanation"`
}

// SeverityFromScore maps a score onto its band.
func SeverityFromScore(score float64) Severity {
	switch {
	case score <= 0:
		return SeverityNone
	case score < 4.0:
		return SeverityLow
	case score < 7.0:
		return SeverityMedium
	case score < 9.0:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

func newScore(base float64, vector, explanation string) Score {
	return Score{
		BaseScore:    base,
		Severity:     SeverityFromScore(base),
		VectorString: vector,
		Explanation:  explanation,
	}
}

var table = map[model.ThreatType]Score{
	model.ThreatSQLInjection: newScore(9.8,
		"CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
		"Network-accessible SQL injection with no authentication required. High impact on confidentiality, integrity, and availability. Attacker can read, modify, or delete database contents."),
	model.ThreatCommandInjection: newScore(9.8,
		"CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
		"Network-accessible command injection with no authentication. Attacker can execute arbitrary system commands, leading to complete system compromise."),
	model.ThreatMalware: newScore(9.8,
		"CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
		"Malware detection indicates system compromise. High impact on all security properties. Can lead to data theft, system damage, or ransomware."),
	model.ThreatRootAccess: newScore(8.8,
		"CVSS:3.1/AV:N/AC:L/PR:L/UI:N/S:U/C:H/I:H/A:H",
		"Attempt to access root/admin account. If successful, grants complete system control with high impact on all security properties."),
	model.ThreatCriticalAlert: newScore(8.0,
		"CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:N",
		"Critical severity event requiring immediate attention. Specific impact depends on alert type but generally indicates serious security incident."),
	model.ThreatPathTraversal: newScore(7.5,
		"CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:N/A:N",
		"Network-accessible path traversal allowing unauthorized file access. High confidentiality impact as attacker can read sensitive files like /etc/passwd or application configs."),
	model.ThreatSuspiciousFileAccess: newScore(7.5,
		"CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:N/A:N",
		"Access to sensitive system files (/etc/passwd, /etc/shadow). High confidentiality impact as these files contain user credentials and system information."),
	model.ThreatXSS: newScore(6.1,
		"CVSS:3.1/AV:N/AC:L/PR:N/UI:R/S:C/C:L/I:L/A:N",
		"Network-accessible cross-site scripting requiring user interaction. Can steal session cookies, redirect users, or deface pages. Scope changed as attack affects other users."),
	model.ThreatFailedLogin: newScore(5.3,
		"CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:N/I:N/A:L",
		"Failed login attempts indicate potential brute force attack. Low availability impact from resource consumption. Becomes critical if successful or repeated from same IP."),
	model.ThreatPortScanning: newScore(5.3,
		"CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:L/I:N/A:N",
		"Port scanning indicates reconnaissance activity. Low confidentiality impact from service discovery. Often precedes more serious attacks."),
}

// ForThreat returns the fixed score for a threat type.
func ForThreat(t model.ThreatType) (Score, bool) {
	s, ok := table[t]
	return s, ok
}

// Count is one element of a threat multiset.
type Count struct {
	Threat model.ThreatType
	Count  int
}

// VolumeMultiplier scales the worst base score by total instance count.
func VolumeMultiplier(instances int) float64 {
	switch {
	case instances <= 0:
		return 0
	case instances <= 2:
		return 1.0
	case instances <= 5:
		return 1.1
	case instances <= 10:
		return 1.15
	case instances <= 20:
		return 1.2
	default:
		return 1.25
	}
}

// Aggregate scores a multiset of threat counts. Non-positive counts and
// unknown types are ignored; repeated types are merged.
func Aggregate(counts []Count) Score {
	types := make(map[model.ThreatType]bool)
	var total int
	var highest float64

	for _, c := range counts {
		s, ok := table[c.Threat]
		if !ok || c.Count <= 0 {
			continue
		}
		types[c.Threat] = true
		total += c.Count
		highest = math.Max(highest, s.BaseScore)
	}

	if total == 0 {
		return Score{
			BaseScore:    0,
			Severity:     SeverityNone,
			VectorString: NoImpactVector,
			Explanation:  "No threats detected",
		}
	}

	multiplier := VolumeMultiplier(total)
	score := math.Min(round2(highest*multiplier), maxScore)

	return Score{
		BaseScore:    score,
		Severity:     SeverityFromScore(score),
		VectorString: AggregateVector,
		Explanation: fmt.Sprintf(
			"Aggregate score based on %d threat type(s) with %d total instance(s). Highest individual threat score: %.1f. Volume multiplier: %.2fx",
			len(types), total, highest, multiplier),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
