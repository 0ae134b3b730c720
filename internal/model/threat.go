// internal/model/threat.go
package model

import "strings"

// ThreatType is one of the ten scored threat categories.
type ThreatType int

const (
	ThreatSQLInjection ThreatType = iota + 1
	ThreatCommandInjection
	ThreatMalware
	ThreatRootAccess
	ThreatCriticalAlert
	ThreatPathTraversal
	ThreatSuspiciousFileAccess
	ThreatXSS
	ThreatFailedLogin
	ThreatPortScanning
)

var threatNames = map[ThreatType]string{
	ThreatSQLInjection:         "SQL Injection",
	ThreatCommandInjection:     "Command Injection",
	ThreatMalware:              "Malware",
	ThreatRootAccess:           "Root Access",
	ThreatCriticalAlert:        "Critical Alert",
	ThreatPathTraversal:        "Path Traversal",
	ThreatSuspiciousFileAccess: "Suspicious File Access",
	ThreatXSS:                  "Cross-Site Scripting",
	ThreatFailedLogin:          "Failed Login",
	ThreatPortScanning:         "Port Scanning",
}

// Aliases accepted by ParseThreatType in addition to the display names.
var threatAliases = map[string]ThreatType{
	"sql_injection":          ThreatSQLInjection,
	"sqli":                   ThreatSQLInjection,
	"command_injection":      ThreatCommandInjection,
	"malware":                ThreatMalware,
	"root_access":            ThreatRootAccess,
	"root access attempt":    ThreatRootAccess,
	"critical_alert":         ThreatCriticalAlert,
	"path_traversal":         ThreatPathTraversal,
	"suspicious_file_access": ThreatSuspiciousFileAccess,
	"xss":                    ThreatXSS,
	"cross_site_scripting":   ThreatXSS,
	"failed_login":           ThreatFailedLogin,
	"port_scanning":          ThreatPortScanning,
}

func (t ThreatType) String() string {
	if name, ok := threatNames[t]; ok {
		return name
	}
	return "Unknown"
}

// ParseThreatType resolves a display name or snake_case alias, ignoring case.
func ParseThreatType(name string) (ThreatType, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for t, display := range threatNames {
		if strings.ToLower(display) == key {
			return t, true
		}
	}
	t, ok := threatAliases[key]
	return t, ok
}
