package profile

import (
	"context"
	"regexp"
	"strings"

	"github.com/spigell/talent-ranker/internal/skills"
	"github.com/spigell/talent-ranker/internal/utils"
)

const (
	dictionaryName       = "dictionary"
	maxExperienceEntries = 10
	maxEducationEntries  = 5
	maxEntryRunes        = 100
)

var (
	jobTitleWords = []string{"engineer", "developer", "designer", "manager", "director", "analyst", "architect", "consultant", "specialist", "coordinator", "lead", "principal"}
	degreePattern = regexp.MustCompile(`(?i)(^|[^a-z])(bachelor|master|ph\.?\s?d|diploma|certificate|b\.\s?s\.?c?|m\.\s?s\.?c?|b\.\s?a\.|m\.\s?a\.|bsc|msc|b\.?\s?tech|m\.?\s?tech|mba)($|[^a-z])`)
)

type dictionaryStrategy struct {
	toggle
	vocab *skills.Vocabulary
}

// NewDictionary creates the deterministic pattern and vocabulary pass.
func NewDictionary(vocab *skills.Vocabulary) Strategy {
	return &dictionaryStrategy{vocab: vocab}
}

func (d *dictionaryStrategy) Name() string { return dictionaryName }

// Extract never fails. Confidence is the share of the three fields found.
func (d *dictionaryStrategy) Extract(_ context.Context, text string) (Fields, float64, error) {
	f := Fields{
		Skills:     d.vocab.Terms(text, maxSkills),
		Experience: ExperienceLines(text),
		Education:  EducationLines(text),
	}
	return f, coverage(f), nil
}

func (d *dictionaryStrategy) Status() Status {
	return Status{
		Name:    d.Name(),
		Enabled: d.IsEnabled(),
		Reason:  d.reason,
		Details: map[string]string{"max_skills": limitDetail(maxSkills)},
	}
}

// ExperienceLines returns lines that mention a job title, cut to 100 runes.
func ExperienceLines(text string) []string {
	var entries []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len([]rune(line)) <= 5 {
			continue
		}
		if !containsAny(strings.ToLower(line), jobTitleWords) {
			continue
		}
		entry := utils.TruncateRunes(line, maxEntryRunes)
		if _, ok := seen[entry]; ok {
			continue
		}
		seen[entry] = struct{}{}
		entries = append(entries, entry)
		if len(entries) >= maxExperienceEntries {
			break
		}
	}
	return entries
}

// EducationLines returns lines that mention a degree or certificate.
func EducationLines(text string) []string {
	var entries []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len([]rune(line)) <= 5 || !degreePattern.MatchString(line) {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		entries = append(entries, line)
		if len(entries) >= maxEducationEntries {
			break
		}
	}
	return entries
}

func coverage(f Fields) float64 {
	found := 0
	for _, n := range []int{len(f.Skills), len(f.Experience), len(f.Education)} {
		if n > 0 {
			found++
		}
	}
	return float64(found) / 3
}
