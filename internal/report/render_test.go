// internal/report/render_test.go
package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/signalnine/threatscope/internal/protocol"
)

func sampleReport() Report {
	return Report{
		Source: "access.log",
		Result: protocol.AnalysisResult{
			ThreatStatistics: protocol.ThreatStatistics{
				SQLInjectionAttempts: 2,
				CVSSScores: []protocol.ThreatCVSS{
					{ThreatType: "SQL Injection", Count: 2, CVSSScore: 9.8, Severity: "Critical"},
				},
				WebThreats: []protocol.WebThreat{
					{ThreatType: "Security Scanner", Severity: "Medium", Count: 3},
				},
			},
			IPAnalysis: protocol.IPAnalysis{
				AllIPs: []protocol.IPInfo{{IP: "192.168.1.5", Count: 5, RiskLevel: "high"}},
			},
			RiskAssessment: protocol.RiskAssessment{
				Level: "LOW", TotalThreats: 2, Description: "Normal activity",
				CVSSAggregateScore: 9.8, CVSSSeverity: "Critical",
			},
			ParsingInfo: protocol.ParsingInfo{
				TotalLines: 5, ParsedLines: 5,
				Errors: []protocol.ParseError{
					{LineNumber: 4, LineContent: "!!!", ErrorType: "No valid content", Suggestion: "Check encoding"},
				},
			},
			Alerts: []protocol.Alert{
				{ID: "a1b2c3d4", Severity: "CRITICAL", Title: "SQL Injection Attack Detected", Description: "Detected 2 SQL injection attempts"},
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"table": FormatTable, "JSON": FormatJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("ParseFormat(yaml) expected error")
	}
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	if err := New(FormatJSON).Render(&buf, []Report{sampleReport()}); err != nil {
		t.Fatalf("Render error: %v", err)
	}
	var got Report
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("single report is not one JSON object: %v", err)
	}
	if got.Source != "access.log" || got.Result.RiskAssessment.CVSSAggregateScore != 9.8 {
		t.Errorf("Got %+v", got)
	}

	buf.Reset()
	New(FormatJSON).Render(&buf, []Report{sampleReport(), sampleReport()})
	var many []Report
	if err := json.Unmarshal(buf.Bytes(), &many); err != nil || len(many) != 2 {
		t.Errorf("two reports = %d, %v", len(many), err)
	}
}

func TestTableRenderer(t *testing.T) {
	var buf bytes.Buffer
	if err := New(FormatTable).Render(&buf, []Report{sampleReport()}); err != nil {
		t.Fatalf("Render error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"access.log",
		"Normal activity",
		"SQL Injection",
		"Security Scanner",
		"192.168.1.5",
		"SQL Injection Attack Detected",
		"line 4:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestHistory(t *testing.T) {
	var buf bytes.Buffer
	rows := []protocol.StoredAnalysis{{
		ID: 7, Timestamp: time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
		Source: "auth", Hostname: "web-01", RiskLevel: "HIGH", TotalThreats: 12, AIStatus: "ok",
	}}
	if err := History(&buf, rows); err != nil {
		t.Fatalf("History error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Got %d lines, want header plus 1", len(lines))
	}
	if !strings.HasPrefix(lines[1], "7 ") || !strings.Contains(lines[1], "2026-02-03 12:00:00") {
		t.Errorf("row = %q", lines[1])
	}
}
