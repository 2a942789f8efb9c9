// Package explain turns scores and evidence into human readable feedback.
// Every sentence it produces is derived from a profile field, a matched skill
// or a numeric signal.
package explain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spigell/talent-ranker/internal/profile"
	"github.com/spigell/talent-ranker/internal/scoring"
	"github.com/spigell/talent-ranker/internal/semantic"
	"github.com/spigell/talent-ranker/internal/skills"
	"github.com/spigell/talent-ranker/internal/utils"
)

const (
	evidenceCandidates = 5
	maxEvidenceLines   = 3
	maxEvidenceRunes   = 240
	maxGapSuggestions  = 5
	maxGapsInFeedback  = 3
)

var contactNoise = []string{"email", "phone", "linkedin", "github", "http", "@"}

// Input is everything known about one scored candidate.
type Input struct {
	Profile    *profile.CandidateProfile
	Signals    scoring.Signals
	Percentage int
	Skills     skills.Result
	Chunks     []semantic.ChunkMatch
}

// Explanation is the generated, human readable part of a ranked candidate.
type Explanation struct {
	Summary      string
	Feedback     string
	Evidence     []string
	Improvements []string
}

// Explainer builds explanations. It is safe for concurrent use.
type Explainer struct {
	vocab *skills.Vocabulary
}

// New returns an explainer that recognises skills through vocab.
func New(vocab *skills.Vocabulary) *Explainer {
	return &Explainer{vocab: vocab}
}

// Explain builds the full explanation for a candidate.
func (e *Explainer) Explain(in Input) Explanation {
	p := in.Profile
	if p == nil {
		p = &profile.CandidateProfile{}
	}

	return Explanation{
		Summary:      Summary(p.Name, in.Percentage, in.Signals, in.Skills),
		Feedback:     Feedback(p, in.Signals, in.Skills),
		Evidence:     e.EvidenceLines(in.Chunks, in.Skills.Required),
		Improvements: Improvements(in.Skills, len(p.Skills)),
	}
}

// Summary is the one sentence overview of a candidate. It depends on the
// match percentage, so it is rebuilt whenever weights change.
func Summary(name string, percentage int, s scoring.Signals, res skills.Result) string {
	if strings.TrimSpace(name) == "" {
		name = "Candidate"
	}
	if res.NoRequiredSkills() {
		return fmt.Sprintf("%s matches %d%% of the target with semantic similarity %.2f.", name, percentage, s.Semantic)
	}
	return fmt.Sprintf("%s matches %d%% of the target with semantic similarity %.2f and %d of %d required skills.",
		name, percentage, s.Semantic, len(res.Matched), len(res.Required))
}

// Feedback is a paragraph templated from score bands.
func Feedback(p *profile.CandidateProfile, s scoring.Signals, res skills.Result) string {
	parts := []string{semanticBand(s.Semantic)}

	if res.NoRequiredSkills() {
		parts = append(parts, "The target names no recognisable skills, so skill overlap was not scored.")
	} else {
		parts = append(parts, skillBand(s.Skill, len(res.Matched), len(res.Required)))
		switch {
		case s.Semantic > 0.75 && s.Skill > 0.7:
			parts = append(parts, "Overall an excellent match.")
		case s.Semantic > 0.5 && s.Skill <= 0.4 && len(res.Missing) > 0:
			parts = append(parts, fmt.Sprintf("Strong fit overall with a skill gap in %s.", gapList(res.Missing)))
		}
	}

	if n := len(p.ExperienceEntries); n > 0 {
		parts = append(parts, fmt.Sprintf("Candidate lists %d experience %s.", n, plural(n, "entry", "entries")))
	}
	if p.YearsMentioned > 0 {
		parts = append(parts, fmt.Sprintf("The resume mentions %d years of experience.", p.YearsMentioned))
	}
	if len(p.EducationEntries) > 0 {
		parts = append(parts, "Education details are included.")
	}
	if p.Degraded {
		parts = append(parts, "Profile extraction was limited, so extracted fields may be incomplete.")
	}

	return strings.Join(parts, " ")
}

func semanticBand(score float64) string {
	switch {
	case score > 0.75:
		return "Strong semantic match with job requirements."
	case score > 0.5:
		return "Good match with job requirements."
	case score > 0.3:
		return "Moderate match with job requirements."
	default:
		return "Limited semantic match with job requirements."
	}
}

func skillBand(ratio float64, matched, required int) string {
	switch {
	case ratio > 0.7:
		return fmt.Sprintf("Excellent skill alignment with %d of %d required skills.", matched, required)
	case ratio > 0.4:
		return fmt.Sprintf("Good skill overlap with %d of %d required skills.", matched, required)
	case ratio > 0.1:
		return fmt.Sprintf("Some skill overlap with %d of %d required skills.", matched, required)
	default:
		return "Limited skill overlap with job requirements."
	}
}

// EvidenceLines picks up to three of the five most similar resume chunks,
// skipping contact details, and annotates each with the required skills it
// mentions.
func (e *Explainer) EvidenceLines(chunks []semantic.ChunkMatch, required []string) []string {
	ranked := append([]semantic.ChunkMatch(nil), chunks...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})
	if len(ranked) > evidenceCandidates {
		ranked = ranked[:evidenceCandidates]
	}

	var lines []string
	for _, c := range ranked {
		snippet := strings.TrimSpace(utils.TruncateRunes(strings.TrimSpace(c.Text), maxEvidenceRunes))
		if snippet == "" || isContactNoise(snippet) {
			continue
		}

		var matched []string
		for _, skill := range required {
			if e.vocab.Contains(snippet, skill) {
				matched = append(matched, skill)
			}
		}
		if len(matched) > 0 {
			snippet += "  | matched: " + strings.Join(matched, ", ")
		}

		lines = append(lines, snippet)
		if len(lines) == maxEvidenceLines {
			break
		}
	}
	return lines
}

// Improvements suggests how to close the gaps in res. skillCount is the number
// of skills extracted from the resume.
func Improvements(res skills.Result, skillCount int) []string {
	var out []string
	for i, gap := range res.Missing {
		if i == maxGapSuggestions {
			break
		}
		out = append(out, fmt.Sprintf("Strengthen experience with %s: build a small project or certification.", gap))
	}
	if skillCount < max(3, len(res.Required)/2) {
		out = append(out, "Highlight concrete achievements using metrics to improve semantic relevance.")
	}
	if len(out) == 0 {
		out = append(out, "Great alignment. Emphasize recent work matching the job requirements.")
	}
	return out
}

func isContactNoise(s string) bool {
	lower := strings.ToLower(s)
	for _, tok := range contactNoise {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func gapList(missing []string) string {
	if len(missing) > maxGapsInFeedback {
		return strings.Join(missing[:maxGapsInFeedback], ", ") + " and others"
	}
	return strings.Join(missing, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
