package profile

import (
	"context"
	"regexp"
	"strings"

	"github.com/spigell/talent-ranker/internal/utils"
)

const (
	sectionsName   = "sections"
	maxSkillRunes  = 40
	sectionSkills  = "skills"
	sectionWork    = "experience"
	sectionStudy   = "education"
	sectionOther   = "other"
	maxSectionScan = 40
)

var (
	// HeadingPattern matches a line that is only a resume section heading.
	HeadingPattern = regexp.MustCompile(`(?i)^(technical skills|key skills|skills|core competencies|tech stack|work experience|professional experience|employment history|experience|work history|education|academic background|qualifications|projects?|achievements|certifications|summary|profile|objective|interests|languages)\s*[:\-]?$`)
	skillSeparators = regexp.MustCompile(`\s*(?:[,;|•·]|\s-\s)\s*`)
	skillLabel      = regexp.MustCompile(`^[A-Za-z /&]{2,30}:\s*`)
)

type sectionStrategy struct {
	toggle
}

// NewSections creates the strategy that reads explicit resume sections.
func NewSections() Strategy {
	return &sectionStrategy{}
}

func (s *sectionStrategy) Name() string { return sectionsName }

// Extract reads the skills, experience and education sections. Confidence is
// the share of those sections found.
func (s *sectionStrategy) Extract(_ context.Context, text string) (Fields, float64, error) {
	sections := SplitSections(text)

	var f Fields
	for _, line := range sections[sectionSkills] {
		f.Skills = append(f.Skills, splitSkills(line)...)
	}
	for _, line := range sections[sectionWork] {
		if len(f.Experience) >= maxExperienceEntries {
			break
		}
		f.Experience = append(f.Experience, utils.TruncateRunes(line, maxEntryRunes))
	}
	for _, line := range sections[sectionStudy] {
		if len(f.Education) >= maxEducationEntries {
			break
		}
		f.Education = append(f.Education, line)
	}

	return f, coverage(f), nil
}

func (s *sectionStrategy) Status() Status {
	return Status{Name: s.Name(), Enabled: s.IsEnabled(), Reason: s.reason}
}

// SplitSections groups non-empty lines under the heading that precedes them.
// Lines before the first heading are ignored.
func SplitSections(text string) map[string][]string {
	sections := make(map[string][]string)
	current := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if HeadingPattern.MatchString(line) {
			current = sectionKind(line)
			continue
		}
		if current == "" || current == sectionOther || len(sections[current]) >= maxSectionScan {
			continue
		}
		sections[current] = append(sections[current], line)
	}
	return sections
}

func sectionKind(heading string) string {
	h := strings.ToLower(heading)
	switch {
	case strings.Contains(h, "skill"), strings.Contains(h, "competenc"), strings.Contains(h, "stack"):
		return sectionSkills
	case strings.Contains(h, "experience"), strings.Contains(h, "employment"), strings.Contains(h, "work history"):
		return sectionWork
	case strings.Contains(h, "education"), strings.Contains(h, "academic"), strings.Contains(h, "qualification"):
		return sectionStudy
	default:
		return sectionOther
	}
}

func splitSkills(line string) []string {
	line = skillLabel.ReplaceAllString(line, "")
	var out []string
	for _, item := range skillSeparators.Split(line, -1) {
		item = strings.Trim(strings.TrimSpace(item), ".")
		if item == "" || len([]rune(item)) > maxSkillRunes {
			continue
		}
		out = append(out, item)
	}
	return out
}
