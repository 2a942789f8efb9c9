package ingest

import (
	"regexp"
	"strings"
)

var (
	cidPattern        = regexp.MustCompile(`(?i)\(cid:\d+\)|\bcid:\d+\b`)
	spacesPattern     = regexp.MustCompile(`[ \t\f\v\x{00a0}]{2,}`)
	leadingNumber     = regexp.MustCompile(`^\d{1,3}[.)]?\s+`)
	symbolsOnly       = regexp.MustCompile(`^[\p{N}\p{P}\p{S}\s_]+$`)
	linkPattern       = regexp.MustCompile(`(?i)(https?://|www\.|\.com|\.net|\.org|linkedin\.|github\.|mailto:)`)
	wordPattern       = regexp.MustCompile(`[A-Za-z]{4,}`)
	pipePattern       = regexp.MustCompile(`[ \t]*\|[ \t]*`)
	upperHeading      = regexp.MustCompile(`[ \t]*\b(EDUCATION|SKILLS|PROJECTS|EXPERIENCE|ACHIEVEMENTS)\b[ \t]*`)
	titleHeading      = regexp.MustCompile(`[ \t]*\b(Education|Skills|Projects|Experience|Achievements)[ \t]*(:|\n|$)`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
)

// Clean strips extraction artifacts from resume text: (cid:N) glyph codes,
// leading page numbers and bullets, symbol-only lines and bare links. Pipe
// separators are normalised and section headings are put on their own lines.
func Clean(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	raw = cidPattern.ReplaceAllString(raw, "")

	lines := strings.Split(raw, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(spacesPattern.ReplaceAllString(line, " "))
		line = leadingNumber.ReplaceAllString(line, "")
		if line != "" && symbolsOnly.MatchString(line) {
			continue
		}
		if linkPattern.MatchString(line) && len(wordPattern.FindAllString(line, -1)) < 2 {
			continue
		}
		kept = append(kept, line)
	}

	text := strings.Join(kept, "\n")
	text = pipePattern.ReplaceAllString(text, " | ")
	text = upperHeading.ReplaceAllString(text, "\n$1\n")
	text = titleHeading.ReplaceAllString(text, "\n$1$2")
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
