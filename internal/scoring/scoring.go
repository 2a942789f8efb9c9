// Package scoring combines per-candidate signals into a match percentage and
// orders candidates deterministically.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

const (
	experienceEntriesCap = 8
	experienceYearsCap   = 10
)

// Weights are the relative importance of each signal. They need not sum to 1.
type Weights struct {
	Semantic   float64 `mapstructure:"semantic" json:"semantic"`
	Skill      float64 `mapstructure:"skill" json:"skill"`
	Experience float64 `mapstructure:"experience" json:"experience"`
}

// DefaultWeights favour semantic similarity.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.85, Skill: 0.15, Experience: 0}
}

// ParseWeights reads a "semantic,skill,experience" triple.
func ParseWeights(s string) (Weights, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Weights{}, fmt.Errorf("weights must have three comma separated values, got %q", s)
	}

	values := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Weights{}, fmt.Errorf("parse weight %q: %w", p, err)
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Weights{}, fmt.Errorf("weight %q must be a finite non-negative number", p)
		}
		values[i] = v
	}

	return Weights{Semantic: values[0], Skill: values[1], Experience: values[2]}, nil
}

// Normalize scales the weights to sum to 1. Negative or NaN weights count as
// zero, and an all-zero triple falls back to semantic only.
func (w Weights) Normalize() Weights {
	s, k, e := nonNegative(w.Semantic), nonNegative(w.Skill), nonNegative(w.Experience)
	sum := s + k + e
	if sum == 0 || math.IsInf(sum, 0) {
		return Weights{Semantic: 1}
	}
	return Weights{Semantic: s / sum, Skill: k / sum, Experience: e / sum}
}

// Signals are the three raw, independently retrievable match signals.
type Signals struct {
	Semantic   float64 `json:"semanticScore"`
	Skill      float64 `json:"skillMatchRatio"`
	Experience float64 `json:"experienceSignal"`
	// NoRequiredSkills marks targets without recognisable skills; the skill
	// signal is then ignored.
	NoRequiredSkills bool `json:"-"`
}

// Combine returns the integer match percentage for the signals. The skill
// weight is dropped when the target named no skills.
func Combine(s Signals, w Weights) int {
	if s.NoRequiredSkills {
		w.Skill = 0
	}
	n := w.Normalize()
	total := n.Semantic*clip01(s.Semantic) + n.Skill*clip01(s.Skill) + n.Experience*clip01(s.Experience)
	return int(math.Round(clip01(total) * 100))
}

// ExperienceSignal maps experience entries and stated years to [0,1].
func ExperienceSignal(entries, years int) float64 {
	fromEntries := float64(entries) / experienceEntriesCap
	fromYears := float64(years) / experienceYearsCap
	return clip01(math.Max(fromEntries, fromYears))
}

// Ranked is one candidate's position in a ranking.
type Ranked struct {
	Index      int
	Percentage int
	Signals    Signals
}

// Rank orders candidates by percentage, then semantic score, then input
// order. The result is a total order, so identical inputs always produce the
// same ranking.
func Rank(signals []Signals, w Weights) []Ranked {
	out := make([]Ranked, len(signals))
	for i, s := range signals {
		out[i] = Ranked{Index: i, Percentage: Combine(s, w), Signals: s}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Percentage != b.Percentage {
			return a.Percentage > b.Percentage
		}
		if sa, sb := clip01(a.Signals.Semantic), clip01(b.Signals.Semantic); sa != sb {
			return sa > sb
		}
		return a.Index < b.Index
	})
	return out
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

func clip01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
