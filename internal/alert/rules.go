// internal/alert/rules.go
package alert

import "fmt"

const (
	failedLoginThreshold = 5
	rootAccessThreshold  = 3
	ipRequestThreshold   = 10
	totalThreatThreshold = 15
)

type FailedLoginRule struct{}

func (r *FailedLoginRule) Name() string { return "failed_login_threshold" }

func (r *FailedLoginRule) Evaluate(s *Stats) []Draft {
	n := s.Counts.FailedLogins
	if n < failedLoginThreshold {
		return nil
	}
	return []Draft{{
		Severity:    SeverityHigh,
		Title:       "Multiple Failed Login Attempts",
		Description: fmt.Sprintf("Detected %d failed login attempts. Possible brute force attack.", n),
	}}
}

type RootAccessRule struct{}

func (r *RootAccessRule) Name() string { return "root_access_threshold" }

func (r *RootAccessRule) Evaluate(s *Stats) []Draft {
	n := s.Counts.RootAttempts
	if n < rootAccessThreshold {
		return nil
	}
	return []Draft{{
		Severity:    SeverityCritical,
		Title:       "Repeated Root Access Attempts",
		Description: fmt.Sprintf("Detected %d attempts to access the root account.", n),
	}}
}

type SQLInjectionRule struct{}

func (r *SQLInjectionRule) Name() string { return "sql_injection_detected" }

func (r *SQLInjectionRule) Evaluate(s *Stats) []Draft {
	n := s.Counts.SQLInjectionAttempts
	if n == 0 {
		return nil
	}
	return []Draft{{
		Severity:    SeverityCritical,
		Title:       "SQL Injection Attempt Detected",
		Description: fmt.Sprintf("Detected %d SQL injection attempt(s). Database may be targeted.", n),
	}}
}

type MalwareRule struct{}

func (r *MalwareRule) Name() string { return "malware_detected" }

func (r *MalwareRule) Evaluate(s *Stats) []Draft {
	n := s.Counts.MalwareDetections
	if n == 0 {
		return nil
	}
	return []Draft{{
		Severity:    SeverityCritical,
		Title:       "Malware Detected",
		Description: fmt.Sprintf("Detected %d malware indicator(s). Isolate affected systems.", n),
	}}
}

// HighRiskIPRule fires once per high-risk IP with heavy activity.
type HighRiskIPRule struct{}

func (r *HighRiskIPRule) Name() string { return "ip_activity_threshold" }

func (r *HighRiskIPRule) Evaluate(s *Stats) []Draft {
	var drafts []Draft
	for _, ip := range s.HighRiskIPs {
		if ip.Count < ipRequestThreshold {
			continue
		}
		drafts = append(drafts, Draft{
			Severity:    SeverityHigh,
			Title:       "Suspicious IP Activity",
			Description: fmt.Sprintf("IP %s appeared %d times in the analyzed logs.", ip.IP, ip.Count),
			IPAddress:   ip.IP,
		})
	}
	return drafts
}

type TotalThreatRule struct{}

func (r *TotalThreatRule) Name() string { return "total_threat_threshold" }

func (r *TotalThreatRule) Evaluate(s *Stats) []Draft {
	n := s.Counts.Total()
	if n < totalThreatThreshold {
		return nil
	}
	return []Draft{{
		Severity:    SeverityCritical,
		Title:       "High Threat Level",
		Description: fmt.Sprintf("Total of %d threats detected across all categories. Immediate review required.", n),
	}}
}
