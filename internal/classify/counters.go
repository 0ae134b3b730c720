// internal/classify/counters.go
package classify

import (
	"strings"

	"github.com/signalnine/threatscope/internal/model"
)

// Signals is the set of generic threat categories an entry tripped.
type Signals uint8

const (
	SignalFailedLogin Signals = 1 << iota
	SignalRootAccess
	SignalSuspiciousFile
	SignalCriticalAlert
	SignalSQLInjection
	SignalPortScan
	SignalMalware
)

// Has reports whether every bit of f is set.
func (s Signals) Has(f Signals) bool { return s&f == f }

type keywordScan struct {
	signal Signals
	match  func(e *model.GenericEntry) bool
}

// Every scan runs; matches are case-sensitive as listed.
var genericScans = []keywordScan{
	{SignalFailedLogin, func(e *model.GenericEntry) bool {
		return e.Level == model.LevelError && strings.Contains(e.Message, "Failed login")
	}},
	{SignalRootAccess, func(e *model.GenericEntry) bool {
		return strings.Contains(e.Message, "user: root")
	}},
	{SignalSuspiciousFile, func(e *model.GenericEntry) bool {
		return containsAny(e.Message, []string{"/etc/passwd", "/etc/shadow", "Suspicious file"})
	}},
	{SignalCriticalAlert, func(e *model.GenericEntry) bool {
		return e.Level == model.LevelCritical
	}},
	{SignalSQLInjection, func(e *model.GenericEntry) bool {
		return containsAny(e.Message, []string{"SELECT", "DROP TABLE", "UNION SELECT", "SQL Injection", "' OR '1'='1"})
	}},
	{SignalPortScan, func(e *model.GenericEntry) bool {
		return containsAny(e.Message, []string{"port scan", "nmap"})
	}},
	{SignalMalware, func(e *model.GenericEntry) bool {
		return containsAny(e.Message, []string{"malware", "trojan", "virus", "ransomware"})
	}},
}

// Counters is the inclusive strategy for generic entries.
type Counters struct {
	scans []keywordScan
}

func NewCounters() *Counters {
	return &Counters{scans: genericScans}
}

func (c *Counters) Name() string { return "counters" }

func (c *Counters) Classify(entry model.Entry) Outcome {
	generic, ok := entry.(*model.GenericEntry)
	if !ok {
		return Outcome{}
	}
	return Outcome{Signals: c.Signals(generic)}
}

// Signals returns every category the entry matches.
func (c *Counters) Signals(e *model.GenericEntry) Signals {
	var s Signals
	for _, scan := range c.scans {
		if scan.match(e) {
			s |= scan.signal
		}
	}
	return s
}

// Counts holds the seven generic threat counters.
type Counts struct {
	FailedLogins         int
	RootAttempts         int
	SuspiciousFileAccess int
	CriticalAlerts       int
	SQLInjectionAttempts int
	PortScanningAttempts int
	MalwareDetections    int
}

// Add increments one counter per set signal.
func (c *Counts) Add(s Signals) {
	if s.Has(SignalFailedLogin) {
		c.FailedLogins++
	}
	if s.Has(SignalRootAccess) {
		c.RootAttempts++
	}
	if s.Has(SignalSuspiciousFile) {
		c.SuspiciousFileAccess++
	}
	if s.Has(SignalCriticalAlert) {
		c.CriticalAlerts++
	}
	if s.Has(SignalSQLInjection) {
		c.SQLInjectionAttempts++
	}
	if s.Has(SignalPortScan) {
		c.PortScanningAttempts++
	}
	if s.Has(SignalMalware) {
		c.MalwareDetections++
	}
}

// Merge adds another set of counts into c.
func (c *Counts) Merge(o Counts) {
	c.FailedLogins += o.FailedLogins
	c.RootAttempts += o.RootAttempts
	c.SuspiciousFileAccess += o.SuspiciousFileAccess
	c.CriticalAlerts += o.CriticalAlerts
	c.SQLInjectionAttempts += o.SQLInjectionAttempts
	c.PortScanningAttempts += o.PortScanningAttempts
	c.MalwareDetections += o.MalwareDetections
}

// Total is the sum of all seven counters.
func (c Counts) Total() int {
	return c.FailedLogins + c.RootAttempts + c.SuspiciousFileAccess + c.CriticalAlerts +
		c.SQLInjectionAttempts + c.PortScanningAttempts + c.MalwareDetections
}

// ByThreat pairs each counter with its CVSS threat type, in report order.
func (c Counts) ByThreat() []ThreatCount {
	return []ThreatCount{
		{model.ThreatSQLInjection, c.SQLInjectionAttempts},
		{model.ThreatFailedLogin, c.FailedLogins},
		{model.ThreatRootAccess, c.RootAttempts},
		{model.ThreatSuspiciousFileAccess, c.SuspiciousFileAccess},
		{model.ThreatPortScanning, c.PortScanningAttempts},
		{model.ThreatMalware, c.MalwareDetections},
		{model.ThreatCriticalAlert, c.CriticalAlerts},
	}
}

// ThreatCount is a counter value keyed by threat type.
type ThreatCount struct {
	Threat model.ThreatType
	Count  int
}
