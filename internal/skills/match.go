package skills

import (
	"strings"

	"github.com/spigell/talent-ranker/internal/utils"
)

const maxEvidenceRunes = 200

// Result is the outcome of matching one candidate against required skills.
type Result struct {
	Required []string
	Matched  []string
	Missing  []string
	// Ratio is |Matched| / max(1, |Required|).
	Ratio float64
	// Evidence maps each matched required skill to a resume excerpt.
	Evidence map[string]string
}

// NoRequiredSkills reports whether the target named no recognisable skill.
func (r Result) NoRequiredSkills() bool {
	return len(r.Required) == 0
}

// Match compares candidate skills with the required ones. A requirement is met
// when a candidate skill equals it or shares its alias group.
func (v *Vocabulary) Match(candidate []string, required []string, rawText string) Result {
	res := Result{
		Required: append([]string(nil), required...),
		Evidence: make(map[string]string),
	}

	lines := strings.Split(rawText, "\n")

	for _, req := range required {
		held := ""
		for _, skill := range candidate {
			if v.Equivalent(skill, req) {
				held = strings.TrimSpace(skill)
				break
			}
		}
		if held == "" {
			res.Missing = append(res.Missing, req)
			continue
		}

		res.Matched = append(res.Matched, req)
		evidence := v.Evidence(lines, req)
		if evidence == "" {
			evidence = "listed skill: " + held
		}
		res.Evidence[req] = evidence
	}

	res.Ratio = float64(len(res.Matched)) / float64(max(1, len(required)))
	return res
}

// Evidence returns the shortest non-empty line mentioning the skill or one of
// its aliases. Ties keep the earliest line. The excerpt is cut to 200 runes.
func (v *Vocabulary) Evidence(lines []string, skill string) string {
	terms := v.Aliases(skill)

	best := ""
	bestLen := -1
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, term := range terms {
			if !v.pattern(term).MatchString(lower) {
				continue
			}
			if n := len([]rune(line)); bestLen < 0 || n < bestLen {
				best, bestLen = line, n
			}
			break
		}
	}

	return utils.TruncateRunes(best, maxEvidenceRunes)
}
