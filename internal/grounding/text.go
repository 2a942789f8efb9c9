package grounding

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/spigell/talent-ranker/internal/utils"
)

const minSentenceLen = 25

var (
	cidPattern     = regexp.MustCompile(`(?i)\(cid:\d+\)|\bcid:\d+\b`)
	urlPattern     = regexp.MustCompile(`(?i)https?://\S+|www\.\S+`)
	emailPattern   = regexp.MustCompile(`\b[\w.-]+@[\w.-]+\.\w+\b`)
	phonePattern   = regexp.MustCompile(`\+?\d[\d\-\s]{7,}\d`)
	spacesPattern  = regexp.MustCompile(`[ \t]{2,}`)
	bulletPattern  = regexp.MustCompile(`^\s*(?:[-*•]+|\d{1,3}[.)])\s*`)
	sentenceSplit  = regexp.MustCompile(`[.!?]\s+`)
	headingPattern = regexp.MustCompile(`(?i)^(projects?|experience|work experience|education|skills|achievements|certifications)\b[:\-]?$`)
	keywordPattern = regexp.MustCompile(`[A-Za-z]{4,}`)
	contactTokens  = []string{"email", "phone", "linkedin", "github", "http", "@", "+91", "+1 ", "www."}
	domainTokens   = []string{".com", ".net", ".org", ".in/", ".io"}
)

// document is a resume prepared for retrieval.
type document struct {
	text string
	// raw keeps every cleaned line, short or noisy ones included.
	raw       []string
	headings  []heading
	sentences []string
}

type heading struct {
	index int
	name  string
}

func prepare(resume string) *document {
	text := scrub(resume)
	doc := &document{text: text}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(bulletPattern.ReplaceAllString(strings.TrimSpace(line), ""))
		if line == "" {
			continue
		}
		doc.raw = append(doc.raw, line)
		if headingPattern.MatchString(line) {
			doc.headings = append(doc.headings, heading{index: len(doc.raw) - 1, name: strings.ToLower(line)})
		}
	}

	seen := make(map[string]struct{})
	for _, line := range doc.raw {
		if isNoise(line) {
			continue
		}
		for _, sentence := range sentenceSplit.Split(line, -1) {
			sentence = strings.TrimSpace(sentence)
			key := strings.ToLower(sentence)
			if _, dup := seen[key]; dup || isNoise(sentence) {
				continue
			}
			seen[key] = struct{}{}
			doc.sentences = append(doc.sentences, sentence)
		}
	}
	return doc
}

// scrub removes extraction artifacts and contact details.
func scrub(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = cidPattern.ReplaceAllString(text, "")
	text = urlPattern.ReplaceAllString(text, "")
	text = emailPattern.ReplaceAllString(text, "")
	text = phonePattern.ReplaceAllString(text, "")
	return spacesPattern.ReplaceAllString(text, " ")
}

// sectionSlice returns the contact-free lines below the first heading whose name
// contains name, up to the next heading or limit lines.
func (d *document) sectionSlice(name string, limit int) []string {
	start := -1
	for _, h := range d.headings {
		if strings.Contains(h.name, name) {
			start = h.index + 1
			break
		}
	}
	if start < 0 {
		return nil
	}

	end := min(len(d.raw), start+limit)
	for _, h := range d.headings {
		if h.index >= start {
			end = min(end, h.index)
			break
		}
	}

	var out []string
	for _, line := range d.raw[start:end] {
		if !isContact(line) {
			out = append(out, line)
		}
	}
	return out
}

// linesMatching returns up to limit contact-free lines accepted by match, cut
// to maxRunes.
func (d *document) linesMatching(match func(string) bool, limit, maxRunes int) []string {
	var out []string
	for _, line := range d.raw {
		if isContact(line) || !match(line) {
			continue
		}
		out = append(out, utils.TruncateRunes(line, maxRunes))
		if len(out) == limit {
			break
		}
	}
	return out
}

// isNoise flags contact details, link fragments, short fragments, delimiter
// soup and number-heavy lines.
func isNoise(s string) bool {
	if isContact(s) {
		return true
	}
	if len(s) < minSentenceLen {
		return true
	}
	if strings.Count(s, "|")+strings.Count(s, ":")+strings.Count(s, "/")+strings.Count(s, "@") >= 3 {
		return true
	}

	letters, digits := 0, 0
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		}
	}
	return letters > 0 && float64(digits)/float64(letters) > 0.7
}

// isContact flags text carrying contact details or web addresses.
func isContact(s string) bool {
	lower := strings.ToLower(s)
	for _, tok := range contactTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	for _, tok := range domainTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func keywords(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range keywordPattern.FindAllString(text, -1) {
		w = strings.ToLower(w)
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
