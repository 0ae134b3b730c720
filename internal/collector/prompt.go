// internal/collector/prompt.go
package collector

import (
	"fmt"
	"strings"

	"github.com/signalnine/threatscope/internal/model"
	"github.com/signalnine/threatscope/internal/protocol"
)

// MaxPromptEntries caps how many parsed entries go into the user prompt.
const MaxPromptEntries = 100

const systemPrompt = `You are a senior cybersecurity analyst reviewing server and application logs. You identify:

- Attack patterns (SQL injection, XSS, path traversal, brute force, command injection)
- Multi-step attack chains grouped by source address and time
- MITRE ATT&CK techniques with their T-codes
- Indicators of compromise (addresses, user agents, payload patterns)

Be specific and only report what the logs show.

Respond with JSON only, no markdown:
{"summary": "3-4 sentence executive summary",
 "threat_level": "Critical" | "High" | "Medium" | "Low" | "Info",
 "attack_chains": [{"name": "...", "description": "...", "steps": ["..."], "severity": "..."}],
 "mitre_attack_techniques": [{"id": "T1190", "name": "...", "tactic": "..."}],
 "indicators_of_compromise": ["..."],
 "recommendations": ["..."],
 "confidence_score": 0.0-1.0}`

// FormatEntry renders one entry as a single prompt line.
func FormatEntry(e model.Entry) string {
	switch v := e.(type) {
	case *model.WebEntry:
		line := fmt.Sprintf("%s - %s %s - Status: %d", v.IP, v.Method, v.Path, v.Status)
		if v.Verdict.Suspicious {
			line += " [" + v.Verdict.ThreatType + "]"
		}
		return line
	case *model.GenericEntry:
		return fmt.Sprintf("[%s] %s %s", v.Timestamp, v.Level, v.Message)
	default:
		return ""
	}
}

// BuildUserPrompt summarizes the deterministic result and appends a sample
// of the parsed entries.
func BuildUserPrompt(r *protocol.AnalysisResult, entries []model.Entry) string {
	var b strings.Builder

	ts := r.ThreatStatistics
	fmt.Fprintf(&b, "## STATISTICS\n")
	fmt.Fprintf(&b, "Lines: %d total, %d parsed\n", r.ParsingInfo.TotalLines, r.ParsingInfo.ParsedLines)
	fmt.Fprintf(&b, "Risk: %s (%d threats, CVSS %.1f %s)\n",
		r.RiskAssessment.Level, r.RiskAssessment.TotalThreats,
		r.RiskAssessment.CVSSAggregateScore, r.RiskAssessment.CVSSSeverity)
	fmt.Fprintf(&b, "Failed logins: %d, root attempts: %d, SQL injection: %d, malware: %d\n",
		ts.FailedLogins, ts.RootAttempts, ts.SQLInjectionAttempts, ts.MalwareDetections)
	for _, w := range ts.WebThreats {
		fmt.Fprintf(&b, "Web %s: %d\n", w.ThreatType, w.Count)
	}
	if n := len(r.IPAnalysis.HighRiskIPs); n > 0 {
		ips := make([]string, 0, n)
		for _, ip := range r.IPAnalysis.HighRiskIPs {
			ips = append(ips, fmt.Sprintf("%s (%d)", ip.IP, ip.Count))
		}
		fmt.Fprintf(&b, "High-risk IPs: %s\n", strings.Join(ips, ", "))
	}

	shown := min(len(entries), MaxPromptEntries)
	fmt.Fprintf(&b, "\n## LOG ENTRIES (%d total, showing %d)\n", len(entries), shown)
	for _, e := range entries[:shown] {
		b.WriteString(FormatEntry(e))
		b.WriteByte('\n')
	}
	return b.String()
}

// stripFences removes a markdown code fence wrapped around a JSON reply.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
