// internal/model/threat_test.go
package model

import "testing"

func TestParseThreatType(t *testing.T) {
	tests := []struct {
		name string
		want ThreatType
		ok   bool
	}{
		{"SQL Injection", ThreatSQLInjection, true},
		{"sql injection", ThreatSQLInjection, true},
		{"sql_injection", ThreatSQLInjection, true},
		{"Cross-Site Scripting", ThreatXSS, true},
		{"Root Access Attempt", ThreatRootAccess, true},
		{"  Port Scanning ", ThreatPortScanning, true},
		{"Security Scanner", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseThreatType(tt.name)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseThreatType(%q) = (%v, %v), want (%v, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestThreatTypeStringRoundTrip(t *testing.T) {
	for tt := ThreatSQLInjection; tt <= ThreatPortScanning; tt++ {
		got, ok := ParseThreatType(tt.String())
		if !ok || got != tt {
			t.Errorf("ParseThreatType(%q) = (%v, %v), want %v", tt.String(), got, ok, tt)
		}
	}
}

func TestEntrySourceIP(t *testing.T) {
	web := &WebEntry{IP: "10.0.0.1"}
	if ip, ok := web.SourceIP(); !ok || ip != "10.0.0.1" {
		t.Errorf("WebEntry.SourceIP() = (%q, %v), want (%q, true)", ip, ok, "10.0.0.1")
	}

	generic := &GenericEntry{Message: "no address here"}
	if _, ok := generic.SourceIP(); ok {
		t.Error("GenericEntry without IP reported a source IP")
	}
	if generic.Kind() != KindGeneric || web.Kind() != KindWeb {
		t.Error("Kind() mismatch")
	}
}
