package grounding

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/talent-ranker/internal/profile"
	"github.com/spigell/talent-ranker/internal/utils"
)

const (
	educationSliceLen = 12
	projectSliceLen   = 18
	projectScanLimit  = 8
)

func leadership(ranked []scoredSentence) *Answer {
	var evidence []string
	for _, s := range ranked {
		if leadershipEvidence.MatchString(s.text) {
			evidence = append(evidence, utils.TruncateRunes(s.text, maxSnippetRunes))
			if len(evidence) == maxEvidence {
				break
			}
		}
	}

	if len(evidence) == 0 {
		return &Answer{Text: "Not explicitly mentioned; no direct evidence of leadership was found."}
	}
	return &Answer{Text: "Yes, shows leadership experience.", Evidence: evidence}
}

func gpa(doc *document) *Answer {
	m := gpaPattern.FindStringSubmatch(doc.text)
	if m != nil {
		line := doc.linesMatching(gpaLine.MatchString, 1, maxLineRunes)
		if len(line) > 0 {
			return &Answer{Text: "CGPA/GPA: " + m[2], Evidence: line}
		}
	}
	return &Answer{Text: "CGPA/GPA not explicitly mentioned; no direct evidence was found."}
}

func (e *Engine) tenure(q query) *Answer {
	if q.technology != "" {
		return e.technologyTenure(q)
	}

	lines := q.doc.linesMatching(profile.YearsPattern.MatchString, -1, maxSnippetRunes)
	if len(lines) == 0 {
		return &Answer{Text: "Years of experience are not clearly quantified; no direct evidence was found."}
	}

	years, evidence := mostYears(lines)
	return &Answer{
		Text:     fmt.Sprintf("Approximately %d years of experience mentioned.", years),
		Evidence: evidence,
	}
}

func (e *Engine) technologyTenure(q query) *Answer {
	tech := q.technology
	mentions := q.doc.linesMatching(func(line string) bool {
		return e.vocab.Contains(line, tech)
	}, -1, maxSnippetRunes)
	if len(mentions) == 0 {
		return noTechnology(tech)
	}

	var withYears []string
	for _, line := range mentions {
		if profile.YearsPattern.MatchString(line) {
			withYears = append(withYears, line)
		}
	}
	if len(withYears) == 0 {
		return &Answer{
			Text:     fmt.Sprintf("%s is mentioned, but years of experience with it are not quantified.", tech),
			Evidence: limit(mentions, maxEvidence),
		}
	}

	years, evidence := mostYears(withYears)
	return &Answer{
		Text:     fmt.Sprintf("Approximately %d years of experience with %s mentioned.", years, tech),
		Evidence: evidence,
	}
}

// mostYears returns the largest years figure and the lines backing it, the
// line holding the maximum first.
func mostYears(lines []string) (int, []string) {
	best, bestIdx := 0, 0
	for i, line := range lines {
		for _, m := range profile.YearsPattern.FindAllStringSubmatch(line, -1) {
			if n, err := strconv.Atoi(m[1]); err == nil && n > best {
				best, bestIdx = n, i
			}
		}
	}

	evidence := []string{lines[bestIdx]}
	for i, line := range lines {
		if i != bestIdx && len(evidence) < maxEvidence {
			evidence = append(evidence, line)
		}
	}
	return best, evidence
}

func education(doc *document) *Answer {
	lines := doc.sectionSlice("education", educationSliceLen)
	for i := range lines {
		lines[i] = utils.TruncateRunes(lines[i], maxLineRunes)
	}
	if len(lines) == 0 {
		lines = doc.linesMatching(educationLine.MatchString, maxEvidence, maxLineRunes)
	}
	if len(lines) == 0 {
		return &Answer{Text: "Education details not clearly found; no direct evidence was found."}
	}

	primary := lines[0]
	for _, line := range lines {
		if institutionLine.MatchString(line) {
			primary = line
			break
		}
	}
	return &Answer{Text: "Education: " + primary, Evidence: limit(lines, maxEvidence)}
}

func projects(q query) *Answer {
	wantWeb := webWords.MatchString(q.question)
	wantML := mlWords.MatchString(q.question)

	lines := q.doc.sectionSlice("project", projectSliceLen)
	if len(lines) == 0 {
		lines = q.doc.linesMatching(func(line string) bool {
			return strings.Contains(strings.ToLower(line), "project") || webWords.MatchString(line) || mlWords.MatchString(line)
		}, projectScanLimit, maxLineRunes)
	}

	var filtered []string
	for _, line := range lines {
		if wantWeb && !webWords.MatchString(line) {
			continue
		}
		if wantML && !mlWords.MatchString(line) {
			continue
		}
		if !projectAction.MatchString(line) {
			continue
		}
		filtered = append(filtered, utils.TruncateRunes(line, maxLineRunes))
		if len(filtered) == maxEvidence {
			break
		}
	}

	use := filtered
	if len(use) == 0 && !wantWeb && !wantML {
		for _, line := range limit(lines, maxEvidence) {
			use = append(use, utils.TruncateRunes(line, maxLineRunes))
		}
	}
	if len(use) == 0 {
		return &Answer{Text: "No direct evidence of projects matching that topic was found."}
	}

	label := "Projects"
	switch {
	case wantWeb:
		label = "Web projects"
	case wantML:
		label = "ML projects"
	}
	return &Answer{Text: label + ": " + use[0], Evidence: use}
}

func (e *Engine) technologyAnswer(q query) *Answer {
	tech := q.technology
	lines := q.doc.linesMatching(func(line string) bool {
		return e.vocab.Contains(line, tech)
	}, maxEvidence, maxSnippetRunes)
	if len(lines) == 0 {
		return noTechnology(tech)
	}
	return &Answer{Text: fmt.Sprintf("Yes, the resume mentions %s.", tech), Evidence: lines}
}

func noTechnology(tech string) *Answer {
	return &Answer{Text: fmt.Sprintf("No direct evidence of %s was found in the resume.", tech)}
}

func general(q query, ranked []scoredSentence) *Answer {
	kw := keywords(q.context)

	var evidence []string
	for i, s := range ranked {
		if i == maxEvidence {
			break
		}
		lower := strings.ToLower(s.text)
		for _, k := range kw {
			if strings.Contains(lower, k) {
				evidence = append(evidence, utils.TruncateRunes(s.text, maxSnippetRunes))
				break
			}
		}
	}

	if len(evidence) == 0 {
		return &Answer{Text: "No direct evidence related to your question was found in the resume."}
	}
	return &Answer{Text: "From the resume: " + strings.Join(limit(evidence, 2), "; "), Evidence: evidence}
}

func limit(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
