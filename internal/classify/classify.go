// internal/classify/classify.go
package classify

import "github.com/signalnine/threatscope/internal/model"

// Strategy classifies one shape of parsed entry. Web entries get an
// exclusive verdict; generic entries get independent signals.
type Strategy interface {
	Name() string
	Classify(entry model.Entry) Outcome
}

// Outcome carries whichever result the strategy produces.
type Outcome struct {
	Verdict model.Verdict
	Signals Signals
}

// Classifier dispatches entries to the strategy registered for their kind.
type Classifier struct {
	strategies map[model.Kind]Strategy
}

// New returns a classifier with the waterfall for web entries and the
// counter scans for generic entries.
func New() *Classifier {
	return &Classifier{
		strategies: map[model.Kind]Strategy{
			model.KindWeb:     NewWaterfall(),
			model.KindGeneric: NewCounters(),
		},
	}
}

// Register replaces the strategy used for a kind.
func (c *Classifier) Register(kind model.Kind, s Strategy) {
	c.strategies[kind] = s
}

// Classify returns the zero Outcome for kinds with no strategy.
func (c *Classifier) Classify(entry model.Entry) Outcome {
	s, ok := c.strategies[entry.Kind()]
	if !ok {
		return Outcome{}
	}
	return s.Classify(entry)
}
