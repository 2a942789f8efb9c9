// Package profile turns raw resume text into a structured candidate profile
// through an ordered chain of extraction strategies.
package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/spigell/talent-ranker/internal/logger"
	"github.com/spigell/talent-ranker/internal/utils"
	"go.uber.org/zap"
)

// ErrEmptyText is returned for empty or whitespace-only resume text.
var ErrEmptyText = errors.New("resume text is empty")

const (
	defaultMaxChars      = 500000
	defaultMinConfidence = 0.5
	maxSkills            = 20
)

// CandidateProfile is the structured view of one resume. It is built once and
// never mutated afterwards.
type CandidateProfile struct {
	ID                string
	Filename          string
	Name              string
	RawText           string
	Summary           string
	Skills            []string
	ExperienceEntries []string
	EducationEntries  []string
	// YearsMentioned is the largest "N years" figure found in the text.
	YearsMentioned   int
	ExtractionSource string
	Degraded         bool
}

// Input is a resume handed to the extractor.
type Input struct {
	ID       string
	Filename string
	Text     string
}

// Config controls the extraction chain.
type Config struct {
	MaxChars      int     `mapstructure:"max-chars"`
	MinConfidence float64 `mapstructure:"min-confidence"`
	LLMMaxChars   int     `mapstructure:"llm-max-chars"`
	UseLLM        bool    `mapstructure:"use-llm"`
}

// Extractor runs the strategy chain. It is safe for concurrent use as long as
// strategies are not enabled or disabled while extracting.
type Extractor struct {
	strategies []Strategy
	cfg        Config
	logger     *zap.Logger
}

// NewExtractor builds an extractor over the given ordered strategies.
func NewExtractor(cfg Config, log *zap.Logger, strategies ...Strategy) *Extractor {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = defaultMaxChars
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = defaultMinConfidence
	}
	return &Extractor{strategies: strategies, cfg: cfg, logger: logger.OrNop(log)}
}

// Strategies exposes the chain for status reporting.
func (e *Extractor) Strategies() []Strategy {
	return e.strategies
}

// Extract builds a profile. Strategy failures never fail the call: the best
// available result is used and the profile is flagged as degraded.
func (e *Extractor) Extract(ctx context.Context, in Input) (*CandidateProfile, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, ErrEmptyText
	}

	text := utils.TruncateRunes(in.Text, e.cfg.MaxChars)
	log := logger.WithCandidate(e.logger, in.ID)

	chosen, outcomes := e.run(ctx, text)
	for _, o := range outcomes {
		fields := []zap.Field{
			zap.String(logger.FieldStrategy, o.Strategy),
			zap.String("status", string(o.Status)),
			zap.Float64("confidence", o.Confidence),
		}
		if o.Err != nil {
			fields = append(fields, zap.Error(o.Err))
		}
		log.Debug("extraction strategy finished", fields...)
	}

	p := &CandidateProfile{
		ID:               in.ID,
		Filename:         in.Filename,
		RawText:          in.Text,
		Summary:          Summarize(text),
		YearsMentioned:   YearsMentioned(text),
		ExtractionSource: "none",
		Degraded:         true,
	}

	if chosen != nil {
		p.Skills = DedupeFold(chosen.Fields.Skills, maxSkills)
		p.ExperienceEntries = DedupeFold(chosen.Fields.Experience, 0)
		p.EducationEntries = DedupeFold(chosen.Fields.Education, 0)
		p.ExtractionSource = chosen.Strategy
		p.Degraded = chosen.Status != StatusOK || fallback(chosen, outcomes) || chosen.Fields.empty()
	}
	p.Name = InferName(nameHint(chosen), text, in.Filename)

	if p.Degraded {
		log.Info("extraction degraded", zap.String(logger.FieldStrategy, p.ExtractionSource))
	}

	return p, nil
}

// run tries the strategies in order and stops at the first confident result.
// Without one, the most confident low-confidence result is returned.
func (e *Extractor) run(ctx context.Context, text string) (*Outcome, []Outcome) {
	outcomes := make([]Outcome, 0, len(e.strategies))
	best := -1

	for _, s := range e.strategies {
		if !s.IsEnabled() {
			outcomes = append(outcomes, Outcome{Strategy: s.Name(), Status: StatusSkipped})
			continue
		}

		fields, confidence, err := s.Extract(ctx, text)
		o := Outcome{Strategy: s.Name(), Confidence: confidence, Fields: fields, Err: err}
		switch {
		case err != nil:
			o.Status = StatusUnavailable
			o.Confidence = 0
		case confidence >= e.cfg.MinConfidence && !fields.empty():
			o.Status = StatusOK
		default:
			o.Status = StatusLowConfidence
		}
		outcomes = append(outcomes, o)

		idx := len(outcomes) - 1
		if o.Status == StatusOK {
			return &outcomes[idx], outcomes
		}
		if o.Status == StatusLowConfidence && (best < 0 || o.Confidence > outcomes[best].Confidence) {
			best = idx
		}
	}

	if best < 0 {
		return nil, outcomes
	}
	return &outcomes[best], outcomes
}

// fallback reports whether the chosen outcome is not the first strategy that
// actually ran.
func fallback(chosen *Outcome, outcomes []Outcome) bool {
	for _, o := range outcomes {
		if o.Status == StatusSkipped {
			continue
		}
		return o.Strategy != chosen.Strategy
	}
	return false
}

func nameHint(o *Outcome) string {
	if o == nil {
		return ""
	}
	return o.Fields.Name
}

// DedupeFold removes case-insensitive duplicates and blanks, keeping the first
// spelling seen. limit <= 0 keeps everything.
func DedupeFold(values []string, limit int) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
