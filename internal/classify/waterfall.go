// internal/classify/waterfall.go
package classify

import (
	"strings"

	"github.com/signalnine/threatscope/internal/cvss"
	"github.com/signalnine/threatscope/internal/model"
)

// Web verdict labels and severities.
const (
	LabelUnauthorized = "Unauthorized Access Attempt"
	LabelScanner      = "Security Scanner"

	SeverityCritical = "Critical"
	SeverityHigh     = "High"
	SeverityMedium   = "Medium"
)

type webRule struct {
	label    string
	severity string
	match    func(e *model.WebEntry) bool
}

// Order matters: the first matching rule decides the verdict.
var webRules = []webRule{
	{model.ThreatSQLInjection.String(), SeverityCritical, matchSQLInjection},
	{model.ThreatPathTraversal.String(), SeverityHigh, matchPathTraversal},
	{model.ThreatXSS.String(), SeverityHigh, matchXSS},
	{model.ThreatCommandInjection.String(), SeverityCritical, matchCommandInjection},
	{LabelUnauthorized, SeverityMedium, matchUnauthorized},
	{LabelScanner, SeverityMedium, matchScanner},
}

var sqlInjectionPatterns = []string{
	"or 1=1",
	"or '1'='1'",
	"'; drop table",
	"' or '1'='1",
}

var traversalPatterns = []string{"../", `..\`, "%2e%2e%2f", "%2e%2e/"}

var xssPatterns = []string{"<script", "javascript:", "onerror=", "onload="}

var commandInjectionPatterns = []string{";", "|", "&&", "`"}

var scannerAgents = []string{"nmap", "nikto", "sqlmap", "masscan", "nessus", "burp", "acunetix"}

func matchSQLInjection(e *model.WebEntry) bool {
	path := strings.ToLower(e.Path)
	if strings.Contains(path, "union") && strings.Contains(path, "select") {
		return true
	}
	return containsAny(path, sqlInjectionPatterns)
}

func matchPathTraversal(e *model.WebEntry) bool {
	return containsAny(e.Path, traversalPatterns)
}

func matchXSS(e *model.WebEntry) bool {
	return containsAny(strings.ToLower(e.Path), xssPatterns)
}

func matchCommandInjection(e *model.WebEntry) bool {
	return containsAny(e.Path, commandInjectionPatterns)
}

func matchUnauthorized(e *model.WebEntry) bool {
	return e.Status == 401 || e.Status == 403
}

func matchScanner(e *model.WebEntry) bool {
	return containsAny(strings.ToLower(e.UserAgent), scannerAgents)
}

// Waterfall is the exclusive, first-match-wins strategy for web entries.
type Waterfall struct {
	rules []webRule
}

func NewWaterfall() *Waterfall {
	return &Waterfall{rules: webRules}
}

func (w *Waterfall) Name() string { return "waterfall" }

func (w *Waterfall) Classify(entry model.Entry) Outcome {
	web, ok := entry.(*model.WebEntry)
	if !ok {
		return Outcome{}
	}
	return Outcome{Verdict: w.Verdict(web)}
}

// Verdict evaluates the rules in order and stops at the first match.
func (w *Waterfall) Verdict(e *model.WebEntry) model.Verdict {
	for _, r := range w.rules {
		if !r.match(e) {
			continue
		}
		v := model.Verdict{Suspicious: true, ThreatType: r.label, Severity: r.severity}
		if t, ok := model.ParseThreatType(r.label); ok {
			if s, ok := cvss.ForThreat(t); ok {
				score := s.BaseScore
				v.CVSSScore = &score
			}
		}
		return v
	}
	return model.Verdict{}
}

// Labels returns the verdict labels in evaluation order.
func (w *Waterfall) Labels() []string {
	labels := make([]string, len(w.rules))
	for i, r := range w.rules {
		labels[i] = r.label
	}
	return labels
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
