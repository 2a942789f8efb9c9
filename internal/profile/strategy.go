package profile

import (
	"context"
	"strconv"
	"time"

	"github.com/spigell/talent-ranker/internal/ai"
	"github.com/spigell/talent-ranker/internal/skills"
)

// Strategy is one extraction pass in the fallback chain.
type Strategy interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	// Extract returns the fields it found and a confidence in [0,1]. An error
	// means the strategy is unavailable for this text.
	Extract(ctx context.Context, text string) (Fields, float64, error)
}

// Fields are the raw values a strategy pulls out of resume text.
type Fields struct {
	Name       string
	Skills     []string
	Experience []string
	Education  []string
}

func (f Fields) empty() bool {
	return len(f.Skills) == 0 && len(f.Experience) == 0 && len(f.Education) == 0
}

// OutcomeStatus tags the result of one strategy run.
type OutcomeStatus string

const (
	StatusOK            OutcomeStatus = "ok"
	StatusLowConfidence OutcomeStatus = "low_confidence"
	StatusUnavailable   OutcomeStatus = "unavailable"
	StatusSkipped       OutcomeStatus = "skipped"
)

// Outcome records what a strategy produced.
type Outcome struct {
	Strategy   string
	Status     OutcomeStatus
	Confidence float64
	Fields     Fields
	Err        error
}

// Status represents runtime information about a strategy.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// DisableByName marks the strategy with the given name as disabled while
// keeping it in the chain.
func DisableByName(strategies []Strategy, name, reason string) {
	for _, s := range strategies {
		if s.Name() == name {
			s.Disable(reason)
		}
	}
}

// Describe returns status entries for the provided strategies.
func Describe(strategies []Strategy) []Status {
	statuses := make([]Status, 0, len(strategies))
	for _, s := range strategies {
		if reporter, ok := s.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}
		statuses = append(statuses, Status{Name: s.Name(), Enabled: s.IsEnabled()})
	}
	return statuses
}

// toggle carries the enable/disable bookkeeping shared by strategies.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

func limitDetail(n int) string {
	return strconv.Itoa(n)
}

// DefaultStrategies returns the standard chain: the model pass, explicit
// sections, then the vocabulary dictionary. The model pass is kept in the
// chain but disabled unless configured.
func DefaultStrategies(cfg Config, vocab *skills.Vocabulary, generator *ai.Handle[ai.Generator], timeout time.Duration) []Strategy {
	strategies := []Strategy{
		NewLLM(generator, cfg.LLMMaxChars, timeout),
		NewSections(),
		NewDictionary(vocab),
	}
	switch {
	case !cfg.UseLLM:
		DisableByName(strategies, llmName, "disabled by configuration")
	case generator == nil:
		DisableByName(strategies, llmName, "gemini is not configured")
	}
	return strategies
}
