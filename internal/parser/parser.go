// internal/parser/parser.go
package parser

import (
	"strings"
	"time"

	"github.com/signalnine/threatscope/internal/classify"
	"github.com/signalnine/threatscope/internal/model"
)

// Tier records which grammar recognized a line.
type Tier int

const (
	TierNone Tier = iota
	TierApache
	TierStructured
	TierStructuredVariant
	TierTimestamp
	TierMinimal
)

func (t Tier) String() string {
	switch t {
	case TierApache:
		return "apache"
	case TierStructured:
		return "structured"
	case TierStructuredVariant:
		return "structured-variant"
	case TierTimestamp:
		return "timestamp"
	case TierMinimal:
		return "minimal"
	default:
		return "none"
	}
}

// Quality buckets tiers for the format histogram.
type Quality int

const (
	QualityPerfect Quality = iota + 1
	QualityAlternative
	QualityFallback
)

func (t Tier) Quality() Quality {
	switch t {
	case TierApache, TierStructured:
		return QualityPerfect
	case TierStructuredVariant, TierTimestamp:
		return QualityAlternative
	default:
		return QualityFallback
	}
}

// Result is one parsed line.
type Result struct {
	Entry model.Entry
	Tier  Tier
}

// Parser turns raw lines into entries. It is safe for concurrent use.
type Parser struct {
	now       func() time.Time
	waterfall *classify.Waterfall
}

type Option func(*Parser)

// WithClock sets the time used for minimal-tier placeholder timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

func New(opts ...Option) *Parser {
	p := &Parser{
		now:       time.Now,
		waterfall: classify.NewWaterfall(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns false only for blank lines. Web entries come back with
// their verdict already attached.
func (p *Parser) Parse(line string) (Result, bool) {
	if strings.TrimSpace(line) == "" {
		return Result{}, false
	}

	if web, ok := parseApache(line); ok {
		web.Verdict = p.waterfall.Verdict(web)
		return Result{Entry: web, Tier: TierApache}, true
	}

	generic, tier := p.parseGeneric(line)
	return Result{Entry: generic, Tier: tier}, true
}
