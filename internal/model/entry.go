// internal/model/entry.go
package model

import "time"

// Normalized generic log levels.
const (
	LevelInfo     = "INFO"
	LevelWarn     = "WARN"
	LevelError    = "ERROR"
	LevelCritical = "CRITICAL"
)

// Kind distinguishes the two parsed entry shapes.
type Kind int

const (
	KindWeb Kind = iota + 1
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindWeb:
		return "web"
	case KindGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// Entry is one parsed log line: either a *WebEntry or a *GenericEntry.
type Entry interface {
	Kind() Kind
	// SourceIP returns the client address carried by the entry, if any.
	SourceIP() (string, bool)
}

// Verdict is the exclusive classification attached to a web entry.
type Verdict struct {
	Suspicious bool     `json:"is_suspicious"`
	ThreatType string   `json:"threat_type,omitempty"`
	Severity   string   `json:"severity,omitempty"`
	CVSSScore  *float64 `json:"cvss_score,omitempty"`
}

// WebEntry is a line that matched the Apache Combined Log Format.
type WebEntry struct {
	IP        string    `json:"ip"`
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Protocol  string    `json:"protocol"`
	Status    int       `json:"status"`
	Size      uint64    `json:"size"`
	Referer   string    `json:"referer"`
	UserAgent string    `json:"user_agent"`
	Verdict   Verdict   `json:"verdict"`
}

func (e *WebEntry) Kind() Kind { return KindWeb }

func (e *WebEntry) SourceIP() (string, bool) { return e.IP, e.IP != "" }

// GenericEntry is a line recovered by the fallback ladder. Timestamp is kept
// as written; minimal-tier lines carry the parse time in RFC 3339.
type GenericEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	IP        string `json:"ip_address,omitempty"`
	Username  string `json:"username,omitempty"`
}

func (e *GenericEntry) Kind() Kind { return KindGeneric }

func (e *GenericEntry) SourceIP() (string, bool) { return e.IP, e.IP != "" }
