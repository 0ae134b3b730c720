// internal/alert/engine.go
package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/signalnine/threatscope/internal/protocol"
)

// Engine runs every registered rule and stamps the resulting alerts.
type Engine struct {
	rules []Rule
	now   func() time.Time
	newID func() string
}

type Option func(*Engine)

// WithClock overrides the alert timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDSource overrides the alert id generator.
func WithIDSource(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func NewEngine(rules []Rule, opts ...Option) *Engine {
	e := &Engine{
		rules: rules,
		now:   time.Now,
		newID: ShortID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func DefaultEngine(opts ...Option) *Engine {
	return NewEngine([]Rule{
		&FailedLoginRule{},
		&RootAccessRule{},
		&SQLInjectionRule{},
		&MalwareRule{},
		&HighRiskIPRule{},
		&TotalThreatRule{},
	}, opts...)
}

func (e *Engine) Register(r Rule) {
	e.rules = append(e.rules, r)
}

// Evaluate never returns nil so an empty run serializes as [].
func (e *Engine) Evaluate(s *Stats) []protocol.Alert {
	alerts := make([]protocol.Alert, 0)
	for _, r := range e.rules {
		for _, d := range r.Evaluate(s) {
			a := protocol.Alert{
				ID:          e.newID(),
				Severity:    d.Severity,
				Title:       d.Title,
				Description: d.Description,
				Timestamp:   e.now().UTC().Format(time.RFC3339),
				TriggeredBy: r.Name(),
			}
			if d.IPAddress != "" {
				ip := d.IPAddress
				a.IPAddress = &ip
			}
			alerts = append(alerts, a)
		}
	}
	return alerts
}

// ShortID returns the first 8 characters of a random UUID.
func ShortID() string {
	return uuid.NewString()[:8]
}
