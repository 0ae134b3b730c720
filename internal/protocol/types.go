// internal/protocol/types.go
package protocol

import "time"

// LogBatch is sent from agent to collector
type LogBatch struct {
	Hostname  string    `json:"hostname"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Lines     []string  `json:"lines"`
}

// AnalysisResult is the complete output of one analysis run
type AnalysisResult struct {
	ThreatStatistics ThreatStatistics `json:"threat_statistics"`
	IPAnalysis       IPAnalysis       `json:"ip_analysis"`
	RiskAssessment   RiskAssessment   `json:"risk_assessment"`
	ParsingInfo      ParsingInfo      `json:"parsing_info"`
	Alerts           []Alert          `json:"alerts"`
}

// ThreatStatistics holds the generic counters plus scored threat types
type ThreatStatistics struct {
	FailedLogins         int          `json:"failed_logins"`
	RootAttempts         int          `json:"root_attempts"`
	SuspiciousFileAccess int          `json:"suspicious_file_access"`
	CriticalAlerts       int          `json:"critical_alerts"`
	SQLInjectionAttempts int          `json:"sql_injection_attempts"`
	PortScanningAttempts int          `json:"port_scanning_attempts"`
	MalwareDetections    int          `json:"malware_detections"`
	CVSSScores           []ThreatCVSS `json:"cvss_scores"`
	WebThreats           []WebThreat  `json:"web_threats"`
}

// ThreatCVSS is the score for one threat type seen in the batch
type ThreatCVSS struct {
	ThreatType   string  `json:"threat_type"`
	Count        int     `json:"count"`
	CVSSScore    float64 `json:"cvss_score"`
	Severity     string  `json:"severity"`
	VectorString string  `json:"vector_string"`
	Explanation  string  `json:"explanation"`
}

// WebThreat tallies access-log verdicts by label
type WebThreat struct {
	ThreatType string `json:"threat_type"`
	Severity   string `json:"severity"`
	Count      int    `json:"count"`
}

type IPAnalysis struct {
	HighRiskIPs []IPInfo `json:"high_risk_ips"`
	AllIPs      []IPInfo `json:"all_ips"`
}

// IPInfo is one source address with its frequency and intelligence
type IPInfo struct {
	IP        string  `json:"ip"`
	Count     int     `json:"count"`
	RiskLevel string  `json:"risk_level"` // "high" or "low"
	Country   *string `json:"country"`
	City      *string `json:"city"`
	IsVPN     bool    `json:"is_vpn"`
}

type RiskAssessment struct {
	Level              string  `json:"level"` // LOW, MEDIUM, HIGH, CRITICAL
	TotalThreats       int     `json:"total_threats"`
	Description        string  `json:"description"`
	CVSSAggregateScore float64 `json:"cvss_aggregate_score"`
	CVSSSeverity       string  `json:"cvss_severity"`
	CVSSVector         string  `json:"cvss_vector"`
	CVSSExplanation    string  `json:"cvss_explanation"`
}

type ParsingInfo struct {
	TotalLines    int           `json:"total_lines"`
	ParsedLines   int           `json:"parsed_lines"`
	SkippedLines  int           `json:"skipped_lines"`
	Errors        []ParseError  `json:"errors"`
	FormatQuality FormatQuality `json:"format_quality"`
}

// ParseError is a diagnostic for a line with no usable content
type ParseError struct {
	LineNumber  int    `json:"line_number"`
	LineContent string `json:"line_content"`
	ErrorType   string `json:"error_type"`
	Suggestion  string `json:"suggestion"`
}

type FormatQuality struct {
	PerfectFormat     int `json:"perfect_format"`
	AlternativeFormat int `json:"alternative_format"`
	FallbackFormat    int `json:"fallback_format"`
}

// Alert is raised by a threshold rule
type Alert struct {
	ID          string  `json:"id"`
	Severity    string  `json:"severity"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Timestamp   string  `json:"timestamp"`
	IPAddress   *string `json:"ip_address"`
	TriggeredBy string  `json:"triggered_by"`
}

// AIReport is the LLM response
type AIReport struct {
	Summary                string           `json:"summary"`
	ThreatLevel            string           `json:"threat_level"`
	AttackChains           []AttackChain    `json:"attack_chains"`
	MitreTechniques        []MitreTechnique `json:"mitre_attack_techniques"`
	IndicatorsOfCompromise []string         `json:"indicators_of_compromise"`
	Recommendations        []string         `json:"recommendations"`
	ConfidenceScore        float64          `json:"confidence_score"`
}

type AttackChain struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
	Severity    string   `json:"severity"`
}

type MitreTechnique struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tactic string `json:"tactic"`
}

// AIAnalysisResponse is the upload response when the AI add-on runs
type AIAnalysisResponse struct {
	AnalysisResult
	AIStatus string    `json:"ai_status"`
	AIReport *AIReport `json:"ai_report,omitempty"`
}

// IngestResponse is returned to agents
type IngestResponse struct {
	ID           int64   `json:"id"`
	RiskLevel    string  `json:"risk_level"`
	TotalThreats int     `json:"total_threats"`
	Alerts       []Alert `json:"alerts"`
	AIStatus     string  `json:"ai_status"`
	LatencyMs    int64   `json:"latency_ms"`
}

// StoredAnalysis is what we persist to SQLite
type StoredAnalysis struct {
	ID                 int64           `json:"id"`
	Timestamp          time.Time       `json:"timestamp"`
	Source             string          `json:"source"`
	Hostname           string          `json:"hostname"`
	Filename           string          `json:"filename"`
	ContentHash        string          `json:"content_hash"`
	SizeBytes          int64           `json:"size_bytes"`
	TotalLines         int             `json:"total_lines"`
	ParsedLines        int             `json:"parsed_lines"`
	SkippedLines       int             `json:"skipped_lines"`
	RiskLevel          string          `json:"risk_level"`
	TotalThreats       int             `json:"total_threats"`
	CVSSAggregateScore float64         `json:"cvss_aggregate_score"`
	Result             *AnalysisResult `json:"result,omitempty"`
	AIStatus           string          `json:"ai_status"`
	AISummary          string          `json:"ai_summary"`
	APILatencyMs       int64           `json:"api_latency_ms"`
	CreatedAt          time.Time       `json:"created_at"`
}
