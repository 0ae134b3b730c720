// internal/parser/generic.go
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/signalnine/threatscope/internal/model"
)

const tsPattern = `(\d{4}[-/]\d{2}[-/]\d{2}[\sT]+\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?)`

var (
	structuredRe = regexp.MustCompile(`^[\[\s]*` + tsPattern +
		`[\]\s]*[\[\s]*(INFO|WARN|WARNING|ERROR|CRITICAL|DEBUG|TRACE|FATAL|EMERGENCY|PANIC)[\]\s]+(.+)$`)

	// The canonical "YYYY-MM-DD HH:MM:SS [LEVEL] message" layout.
	primaryRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} \[(?:INFO|WARN|WARNING|ERROR|CRITICAL|DEBUG|TRACE|FATAL|EMERGENCY|PANIC)\] \S`)

	timestampRe = regexp.MustCompile(`^[\[\s]*` + tsPattern + `[\]\s]+(.+)$`)

	ipRe = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)

	usernamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`user[:\s=]+([a-zA-Z0-9_-]+)`),
		regexp.MustCompile(`username[:\s=]+([a-zA-Z0-9_-]+)`),
		regexp.MustCompile(`([a-zA-Z0-9_-]+)@`),
		regexp.MustCompile(`login[:\s]+([a-zA-Z0-9_-]+)`),
	}
)

// Explicit levels outside the four normalized ones fold into them.
var levelAliases = map[string]string{
	"WARNING":   model.LevelWarn,
	"FATAL":     model.LevelCritical,
	"EMERGENCY": model.LevelCritical,
	"PANIC":     model.LevelCritical,
	"DEBUG":     model.LevelInfo,
	"TRACE":     model.LevelInfo,
}

type levelClass struct {
	level    string
	keywords []string
}

// First class with a matching keyword wins.
var levelKeywords = []levelClass{
	{model.LevelCritical, []string{"critical", "fatal", "emergency", "panic"}},
	{model.LevelError, []string{"error", "fail", "denied", "unauthorized", "forbidden", "invalid", "rejected"}},
	{model.LevelWarn, []string{"warn", "suspicious", "attempt", "retry"}},
}

func normalizeLevel(level string) string {
	level = strings.ToUpper(level)
	if alias, ok := levelAliases[level]; ok {
		return alias
	}
	return level
}

// InferLevel guesses a level from message keywords, ignoring case.
func InferLevel(message string) string {
	lower := strings.ToLower(message)
	for _, class := range levelKeywords {
		for _, kw := range class.keywords {
			if strings.Contains(lower, kw) {
				return class.level
			}
		}
	}
	return model.LevelInfo
}

// ExtractIP returns the first dotted quad in text. Octets are not range
// checked.
func ExtractIP(text string) string {
	m := ipRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractUsername tries each pattern in turn, skipping "root" and
// single-character captures.
func ExtractUsername(text string) string {
	for _, re := range usernamePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if name := m[1]; name != "root" && len(name) > 1 {
			return name
		}
	}
	return ""
}

// parseGeneric runs the fallback ladder. The minimal tier always matches.
func (p *Parser) parseGeneric(line string) (*model.GenericEntry, Tier) {
	if m := structuredRe.FindStringSubmatch(line); m != nil {
		tier := TierStructuredVariant
		if primaryRe.MatchString(line) {
			tier = TierStructured
		}
		return newGeneric(m[1], normalizeLevel(m[2]), m[3]), tier
	}

	if m := timestampRe.FindStringSubmatch(line); m != nil {
		return newGeneric(m[1], InferLevel(m[2]), m[2]), TierTimestamp
	}

	ts := p.now().UTC().Format(time.RFC3339)
	return newGeneric(ts, InferLevel(line), line), TierMinimal
}

func newGeneric(ts, level, message string) *model.GenericEntry {
	return &model.GenericEntry{
		Timestamp: ts,
		Level:     level,
		Message:   message,
		IP:        ExtractIP(message),
		Username:  ExtractUsername(message),
	}
}
