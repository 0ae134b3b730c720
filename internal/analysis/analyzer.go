// internal/analysis/analyzer.go
package analysis

import (
	"context"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/signalnine/threatscope/internal/alert"
	"github.com/signalnine/threatscope/internal/classify"
	"github.com/signalnine/threatscope/internal/cvss"
	"github.com/signalnine/threatscope/internal/iprisk"
	"github.com/signalnine/threatscope/internal/ipintel"
	"github.com/signalnine/threatscope/internal/model"
	"github.com/signalnine/threatscope/internal/parser"
	"github.com/signalnine/threatscope/internal/protocol"
)

// MaxDiagnostics caps the parse errors reported per run.
const MaxDiagnostics = 10

const defaultChunkSize = 2048

// Analyzer runs the parse, classify, score and alert pipeline. A single
// Analyzer may serve concurrent calls.
type Analyzer struct {
	parser     *parser.Parser
	classifier *classify.Classifier
	webLabels  []string
	intel      ipintel.Provider
	engine     *alert.Engine
	workers    int
	chunkSize  int
	logger     *zap.Logger
}

type settings struct {
	now       func() time.Time
	newID     func() string
	intel     ipintel.Provider
	workers   int
	chunkSize int
	logger    *zap.Logger
}

type Option func(*settings)

// WithClock sets the clock for placeholder timestamps and alerts.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithIDSource sets the alert id generator.
func WithIDSource(newID func() string) Option {
	return func(s *settings) { s.newID = newID }
}

// WithIntelligence replaces the prefix heuristic.
func WithIntelligence(p ipintel.Provider) Option {
	return func(s *settings) { s.intel = p }
}

// WithWorkers bounds parse concurrency. Values below 1 mean GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *settings) { s.workers = n }
}

// WithChunkSize sets how many lines each parse task handles.
func WithChunkSize(n int) Option {
	return func(s *settings) { s.chunkSize = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

func New(opts ...Option) *Analyzer {
	s := settings{
		now:       time.Now,
		newID:     alert.ShortID,
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.workers < 1 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	if s.chunkSize < 1 {
		s.chunkSize = defaultChunkSize
	}
	if s.intel == nil {
		s.intel = ipintel.NewPrefixHeuristic()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	return &Analyzer{
		parser:     parser.New(parser.WithClock(s.now)),
		classifier: classify.New(),
		webLabels:  classify.NewWaterfall().Labels(),
		intel:      s.intel,
		engine:     alert.DefaultEngine(alert.WithClock(s.now), alert.WithIDSource(s.newID)),
		workers:    s.workers,
		chunkSize:  s.chunkSize,
		logger:     s.logger,
	}
}

// Outcome is the result plus the parsed entries, in input order, for
// collaborators that need them (prompt construction).
type Outcome struct {
	Result  protocol.AnalysisResult
	Entries []model.Entry
}

// SplitLines splits text on newlines, dropping a trailing empty line and
// carriage returns. Invalid UTF-8 is replaced.
func SplitLines(content string) []string {
	content = strings.ToValidUTF8(content, "\uFFFD")
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Analyze splits content into lines and analyzes them.
func (a *Analyzer) Analyze(ctx context.Context, content string) *Outcome {
	return a.AnalyzeLines(ctx, SplitLines(content))
}

type webTally struct {
	severity string
	count    int
}

// partial is the fold of one contiguous chunk of lines.
type partial struct {
	entries     []model.Entry
	parsed      int
	quality     protocol.FormatQuality
	counts      classify.Counts
	ips         *iprisk.Aggregator
	web         map[string]*webTally
	diagnostics []protocol.ParseError
}

func (a *Analyzer) foldChunk(lines []string, offset int) *partial {
	p := &partial{
		entries: make([]model.Entry, 0, len(lines)),
		ips:     iprisk.New(),
		web:     make(map[string]*webTally),
	}

	for i, line := range lines {
		res, ok := a.parser.Parse(line)
		if !ok {
			continue
		}
		p.parsed++
		p.entries = append(p.entries, res.Entry)

		switch res.Tier.Quality() {
		case parser.QualityPerfect:
			p.quality.PerfectFormat++
		case parser.QualityAlternative:
			p.quality.AlternativeFormat++
		default:
			p.quality.FallbackFormat++
		}

		if d, bad := parser.Diagnose(line); bad && len(p.diagnostics) < MaxDiagnostics {
			p.diagnostics = append(p.diagnostics, protocol.ParseError{
				LineNumber:  offset + i + 1,
				LineContent: parser.Excerpt(line),
				ErrorType:   d.ErrorType,
				Suggestion:  d.Suggestion,
			})
		}

		if ip, ok := res.Entry.SourceIP(); ok {
			p.ips.Add(ip)
		}

		// Web verdicts are attached by the parser.
		if web, ok := res.Entry.(*model.WebEntry); ok {
			if web.Verdict.Suspicious {
				t := p.web[web.Verdict.ThreatType]
				if t == nil {
					t = &webTally{severity: web.Verdict.Severity}
					p.web[web.Verdict.ThreatType] = t
				}
				t.count++
			}
			continue
		}
		p.counts.Add(a.classifier.Classify(res.Entry).Signals)
	}
	return p
}

// AnalyzeLines runs the pipeline over pre-split lines. It never fails.
func (a *Analyzer) AnalyzeLines(ctx context.Context, lines []string) *Outcome {
	start := time.Now()

	parts := make([]*partial, (len(lines)+a.chunkSize-1)/a.chunkSize)

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i := range parts {
		off := i * a.chunkSize
		end := min(off+a.chunkSize, len(lines))
		g.Go(func() error {
			parts[i] = a.foldChunk(lines[off:end], off)
			return nil
		})
	}
	_ = g.Wait()

	total := &partial{ips: iprisk.New(), web: make(map[string]*webTally)}
	for _, p := range parts {
		total.entries = append(total.entries, p.entries...)
		total.parsed += p.parsed
		total.quality.PerfectFormat += p.quality.PerfectFormat
		total.quality.AlternativeFormat += p.quality.AlternativeFormat
		total.quality.FallbackFormat += p.quality.FallbackFormat
		total.counts.Merge(p.counts)
		total.ips.Merge(p.ips)
		total.diagnostics = append(total.diagnostics, p.diagnostics...)
		for label, t := range p.web {
			acc := total.web[label]
			if acc == nil {
				acc = &webTally{severity: t.severity}
				total.web[label] = acc
			}
			acc.count += t.count
		}
	}

	sort.SliceStable(total.diagnostics, func(i, j int) bool {
		return total.diagnostics[i].LineNumber < total.diagnostics[j].LineNumber
	})
	if len(total.diagnostics) > MaxDiagnostics {
		total.diagnostics = total.diagnostics[:MaxDiagnostics]
	}

	result := a.assemble(ctx, len(lines), total)

	a.logger.Debug("analysis complete",
		zap.Int("total_lines", result.ParsingInfo.TotalLines),
		zap.Int("parsed_lines", result.ParsingInfo.ParsedLines),
		zap.Int("total_threats", result.RiskAssessment.TotalThreats),
		zap.String("risk_level", result.RiskAssessment.Level),
		zap.Int("alerts", len(result.Alerts)),
		zap.Duration("duration", time.Since(start)),
	)

	return &Outcome{Result: result, Entries: total.entries}
}

func (a *Analyzer) assemble(ctx context.Context, totalLines int, p *partial) protocol.AnalysisResult {
	multiset := a.threatMultiset(p)
	aggregate := cvss.Aggregate(multiset)

	scores := make([]protocol.ThreatCVSS, 0, len(multiset))
	for _, c := range multiset {
		if c.Count <= 0 {
			continue
		}
		s, ok := cvss.ForThreat(c.Threat)
		if !ok {
			continue
		}
		scores = append(scores, protocol.ThreatCVSS{
			ThreatType:   c.Threat.String(),
			Count:        c.Count,
			CVSSScore:    s.BaseScore,
			Severity:     string(s.Severity),
			VectorString: s.VectorString,
			Explanation:  s.Explanation,
		})
	}

	webThreats := make([]protocol.WebThreat, 0, len(p.web))
	for _, label := range a.webLabels {
		if t, ok := p.web[label]; ok {
			webThreats = append(webThreats, protocol.WebThreat{
				ThreatType: label,
				Severity:   t.severity,
				Count:      t.count,
			})
		}
	}

	ips := p.ips.Summarize(ctx, a.intel)
	totalThreats := p.counts.Total()
	level, description := AssessRisk(totalThreats)

	alerts := a.engine.Evaluate(&alert.Stats{
		Counts:      p.counts,
		HighRiskIPs: ips.HighRiskIPs,
	})

	errs := p.diagnostics
	if errs == nil {
		errs = []protocol.ParseError{}
	}

	return protocol.AnalysisResult{
		ThreatStatistics: protocol.ThreatStatistics{
			FailedLogins:         p.counts.FailedLogins,
			RootAttempts:         p.counts.RootAttempts,
			SuspiciousFileAccess: p.counts.SuspiciousFileAccess,
			CriticalAlerts:       p.counts.CriticalAlerts,
			SQLInjectionAttempts: p.counts.SQLInjectionAttempts,
			PortScanningAttempts: p.counts.PortScanningAttempts,
			MalwareDetections:    p.counts.MalwareDetections,
			CVSSScores:           scores,
			WebThreats:           webThreats,
		},
		IPAnalysis: ips,
		RiskAssessment: protocol.RiskAssessment{
			Level:              level,
			TotalThreats:       totalThreats,
			Description:        description,
			CVSSAggregateScore: aggregate.BaseScore,
			CVSSSeverity:       string(aggregate.Severity),
			CVSSVector:         aggregate.VectorString,
			CVSSExplanation:    aggregate.Explanation,
		},
		ParsingInfo: protocol.ParsingInfo{
			TotalLines:    totalLines,
			ParsedLines:   p.parsed,
			SkippedLines:  totalLines - p.parsed,
			Errors:        errs,
			FormatQuality: p.quality,
		},
		Alerts: alerts,
	}
}

// threatMultiset combines the generic counters with scoreable web
// verdicts. Counter types come first, then web-only types in rule order.
func (a *Analyzer) threatMultiset(p *partial) []cvss.Count {
	var out []cvss.Count
	index := make(map[model.ThreatType]int)
	for _, tc := range p.counts.ByThreat() {
		index[tc.Threat] = len(out)
		out = append(out, cvss.Count{Threat: tc.Threat, Count: tc.Count})
	}
	for _, label := range a.webLabels {
		t, ok := model.ParseThreatType(label)
		if !ok {
			continue
		}
		tally, ok := p.web[label]
		if !ok {
			continue
		}
		if i, seen := index[t]; seen {
			out[i].Count += tally.count
			continue
		}
		index[t] = len(out)
		out = append(out, cvss.Count{Threat: t, Count: tally.count})
	}
	return out
}
