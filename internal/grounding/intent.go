package grounding

import (
	"regexp"
	"strings"
)

// Intent is the kind of question being asked.
type Intent string

const (
	IntentLeadership Intent = "leadership"
	IntentGPA        Intent = "gpa"
	IntentTenure     Intent = "tenure"
	IntentEducation  Intent = "education"
	IntentProjects   Intent = "projects"
	IntentTechnology Intent = "technology"
	IntentGeneral    Intent = "general"
)

var (
	leadershipQuestion = wordMatcher("lead", "managed", "manage", "supervis", "responsib", "owned", "ownership",
		"accountable", "coordinated", "organized", "mentor")
	leadershipEvidence = regexp.MustCompile(`(?i)\b(led|leads|leading|managed|managing|team lead|leadership|supervised|supervising|` +
		`mentored|mentoring|responsible for|owned|coordinated|organi[sz]ed|headed)\b`)

	gpaQuestion = wordMatcher("cgpa", "gpa")
	gpaPattern  = regexp.MustCompile(`(?i)\b(CGPA|GPA)\s*[:\-]?\s*(\d+(?:\.\d+)?)`)
	gpaLine     = regexp.MustCompile(`(?i)\b(CGPA|GPA)\b`)

	tenureQuestion = wordMatcher("year", "experience", "exp", "how long", "tenure")

	educationQuestion = wordMatcher("education", "college", "university", "degree", "btech", "b.tech", "b sc",
		"bsc", "mtech", "m.tech", "msc", "b.e", "graduat", "studied")
	educationLine = wordMatcher("university", "college", "institute", "school", "b.tech", "btech", "b.e",
		"m.tech", "mtech", "m.sc", "msc", "b.sc", "bsc", "cgpa", "gpa")
	institutionLine = wordMatcher("university", "college", "institute", "school")

	projectQuestion = wordMatcher("project", "portfolio", "website")
	webWords        = wordMatcher("web", "website", "frontend", "backend", "full stack", "fullstack", "react", "next",
		"node", "express", "django", "flask", "html", "css", "javascript", "typescript", "api")
	mlWords = wordMatcher("machine learning", "ml", "deep learning", "cnn", "lstm", "pytorch", "tensorflow",
		"model", "classification", "prediction")
	projectAction = wordMatcher("project", "built", "developed", "implemented", "designed", "created",
		"classification", "prediction", "api", "app", "web", "model")

	followUpQuestion = regexp.MustCompile(`(?i)\b(it|that|this|them|those|these)\b`)
)

// wordMatcher builds a case-insensitive matcher. Words of up to three letters
// must stand alone (optionally plural); longer ones match as substrings so
// stems such as "supervis" cover every inflection.
func wordMatcher(words ...string) *regexp.Regexp {
	alternatives := make([]string, 0, len(words))
	for _, w := range words {
		quoted := regexp.QuoteMeta(w)
		if len([]rune(w)) <= 3 {
			quoted = `\b` + quoted + `s?\b`
		}
		alternatives = append(alternatives, quoted)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(alternatives, "|") + `)`)
}

// classify picks the first matching intent. Technology questions name a
// vocabulary term, so they are detected by the engine.
func classify(question string) Intent {
	switch {
	case leadershipQuestion.MatchString(question):
		return IntentLeadership
	case gpaQuestion.MatchString(question):
		return IntentGPA
	case tenureQuestion.MatchString(question):
		return IntentTenure
	case educationQuestion.MatchString(question):
		return IntentEducation
	case projectQuestion.MatchString(question):
		return IntentProjects
	default:
		return IntentGeneral
	}
}
