// internal/report/render.go
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/signalnine/threatscope/internal/protocol"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat accepts "table" or "json".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table or json)", s)
	}
}

// Report is one analyzed input.
type Report struct {
	Source string                  `json:"source"`
	Result protocol.AnalysisResult `json:"result"`
}

type Renderer interface {
	Render(w io.Writer, reports []Report) error
}

func New(f Format) Renderer {
	switch f {
	case FormatJSON:
		return &jsonRenderer{}
	default:
		return &tableRenderer{}
	}
}

type jsonRenderer struct{}

func (r *jsonRenderer) Render(w io.Writer, reports []Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(reports) == 1 {
		return enc.Encode(reports[0])
	}
	return enc.Encode(reports)
}

var (
	styleCritical = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("196")).
			Bold(true)
	styleHigh    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleMedium  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleLow     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleHeading = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

// Severity colors a risk or severity label of any case.
func Severity(label string) string {
	switch strings.ToUpper(label) {
	case "CRITICAL":
		return styleCritical.Render(label)
	case "HIGH":
		return styleHigh.Render(label)
	case "MEDIUM":
		return styleMedium.Render(label)
	default:
		return styleLow.Render(label)
	}
}

type tableRenderer struct{}

func (r *tableRenderer) Render(w io.Writer, reports []Report) error {
	for i, rep := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := renderOne(w, rep); err != nil {
			return err
		}
	}
	return nil
}

func renderOne(w io.Writer, rep Report) error {
	res := rep.Result
	risk := res.RiskAssessment
	info := res.ParsingInfo

	fmt.Fprintln(w, styleHeading.Render("== "+rep.Source+" =="))
	fmt.Fprintf(w, "Risk: %s (%d threats) %s\n", Severity(risk.Level), risk.TotalThreats, risk.Description)
	fmt.Fprintf(w, "CVSS: %.1f %s  %s\n", risk.CVSSAggregateScore, Severity(risk.CVSSSeverity), risk.CVSSVector)
	fmt.Fprintf(w, "Lines: %d total, %d parsed, %d skipped (perfect %d, alternative %d, fallback %d)\n",
		info.TotalLines, info.ParsedLines, info.SkippedLines,
		info.FormatQuality.PerfectFormat, info.FormatQuality.AlternativeFormat, info.FormatQuality.FallbackFormat)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	if len(res.ThreatStatistics.CVSSScores) > 0 {
		fmt.Fprintf(tw, "\nTHREAT\tCOUNT\tCVSS\tSEVERITY\n")
		for _, s := range res.ThreatStatistics.CVSSScores {
			fmt.Fprintf(tw, "%s\t%d\t%.1f\t%s\n", s.ThreatType, s.Count, s.CVSSScore, s.Severity)
		}
	}

	if len(res.ThreatStatistics.WebThreats) > 0 {
		fmt.Fprintf(tw, "\nWEB VERDICT\tCOUNT\tSEVERITY\n")
		for _, t := range res.ThreatStatistics.WebThreats {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", t.ThreatType, t.Count, t.Severity)
		}
	}

	if len(res.IPAnalysis.AllIPs) > 0 {
		fmt.Fprintf(tw, "\nIP\tCOUNT\tRISK\tVPN\n")
		for i, ip := range res.IPAnalysis.AllIPs {
			if i == 10 {
				fmt.Fprintf(tw, "... %d more\t\t\t\n", len(res.IPAnalysis.AllIPs)-10)
				break
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%t\n", ip.IP, ip.Count, ip.RiskLevel, ip.IsVPN)
		}
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	if len(res.Alerts) > 0 {
		fmt.Fprintf(w, "\nAlerts:\n")
		for _, a := range res.Alerts {
			fmt.Fprintf(w, "  [%s] %s (%s): %s\n", Severity(a.Severity), a.Title, a.ID, a.Description)
		}
	}

	if len(info.Errors) > 0 {
		fmt.Fprintf(w, "\nParse errors:\n")
		for _, e := range info.Errors {
			fmt.Fprintf(w, "  line %d: %s %q\n", e.LineNumber, e.ErrorType, e.LineContent)
			fmt.Fprintf(w, "         %s\n", e.Suggestion)
		}
	}
	return nil
}

// History prints stored analyses one per row.
func History(w io.Writer, rows []protocol.StoredAnalysis) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tTIMESTAMP\tSOURCE\tHOST\tRISK\tTHREATS\tCVSS\tLINES\tAI\n")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%.1f\t%d\t%s\n",
			r.ID,
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Source,
			r.Hostname,
			r.RiskLevel,
			r.TotalThreats,
			r.CVSSAggregateScore,
			r.TotalLines,
			r.AIStatus,
		)
	}
	return tw.Flush()
}
