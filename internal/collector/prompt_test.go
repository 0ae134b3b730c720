// internal/collector/prompt_test.go
package collector

import (
	"fmt"
	"strings"
	"testing"

	"github.com/signalnine/threatscope/internal/model"
	"github.com/signalnine/threatscope/internal/protocol"
)

func TestFormatEntry(t *testing.T) {
	web := &model.WebEntry{IP: "192.168.1.5", Method: "GET", Path: "/../../etc/passwd", Status: 404,
		Verdict: model.Verdict{Suspicious: true, ThreatType: "Path Traversal"}}
	clean := &model.WebEntry{IP: "10.0.0.1", Method: "POST", Path: "/login", Status: 200}
	generic := &model.GenericEntry{Timestamp: "2025-02-20 10:30:45", Level: "ERROR", Message: "Failed login for admin"}

	tests := []struct {
		entry model.Entry
		want  string
	}{
		{web, "192.168.1.5 - GET /../../etc/passwd - Status: 404 [Path Traversal]"},
		{clean, "10.0.0.1 - POST /login - Status: 200"},
		{generic, "[2025-02-20 10:30:45] ERROR Failed login for admin"},
	}
	for _, tt := range tests {
		if got := FormatEntry(tt.entry); got != tt.want {
			t.Errorf("FormatEntry() = %q, want %q", got, tt.want)
		}
	}
}

func TestBuildUserPromptCapsEntries(t *testing.T) {
	entries := make([]model.Entry, 150)
	for i := range entries {
		entries[i] = &model.GenericEntry{Timestamp: "t", Level: "INFO", Message: fmt.Sprintf("event %d", i)}
	}
	r := &protocol.AnalysisResult{
		RiskAssessment: protocol.RiskAssessment{Level: "HIGH", TotalThreats: 12},
		IPAnalysis: protocol.IPAnalysis{
			HighRiskIPs: []protocol.IPInfo{{IP: "10.0.0.9", Count: 7}},
		},
	}

	prompt := BuildUserPrompt(r, entries)

	if !strings.Contains(prompt, "(150 total, showing 100)") {
		t.Error("prompt does not report the sample size")
	}
	if !strings.Contains(prompt, "event 99\n") || strings.Contains(prompt, "event 100\n") {
		t.Error("prompt entry cap not applied at 100")
	}
	if !strings.Contains(prompt, "Risk: HIGH (12 threats") {
		t.Error("prompt missing risk summary")
	}
	if !strings.Contains(prompt, "10.0.0.9 (7)") {
		t.Error("prompt missing high-risk IPs")
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```\n", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
