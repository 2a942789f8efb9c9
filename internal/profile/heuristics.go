package profile

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	summaryMin   = 50
	summaryMax   = 300
	nameScanLine = 8
)

// YearsPattern matches tenure statements such as "7+ years".
var YearsPattern = regexp.MustCompile(`(?i)\b(\d{1,2})\s*\+?\s*years?\b`)

var headingWords = []string{"resume", "curriculum", "profile", "summary"}

// YearsMentioned returns the largest number of years stated in text, or 0.
func YearsMentioned(text string) int {
	best := 0
	for _, m := range YearsPattern.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > best {
			best = n
		}
	}
	return best
}

// Summarize returns short texts whole. Longer ones are cut at the first period
// when it falls between 50 and 300 runes, otherwise at 300 runes plus "...".
func Summarize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= summaryMax {
		return text
	}

	for i, r := range runes {
		if r != '.' {
			continue
		}
		if i > summaryMin && i < summaryMax {
			return string(runes[:i+1])
		}
		break
	}
	return string(runes[:summaryMax]) + "..."
}

// InferName picks a display name: the extracted person name when it has 2 to
// 5 words, else a name-like line among the first lines of the text, else the
// file name.
func InferName(person, text, filename string) string {
	if person = strings.TrimSpace(person); person != "" {
		if n := len(strings.Fields(person)); n >= 2 && n <= 5 {
			return person
		}
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i >= nameScanLine {
			break
		}
		clean := strings.TrimSpace(line)
		if clean == "" || containsAny(strings.ToLower(clean), headingWords) {
			continue
		}
		parts := strings.Fields(clean)
		if len(parts) < 2 || len(parts) > 5 {
			continue
		}
		first := []rune(parts[0])[0]
		if unicode.IsLetter(first) && unicode.IsUpper(first) {
			return clean
		}
	}

	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
