// Package skills holds the static skill vocabulary, resolves aliases and
// matches candidate skills against the skills a target asks for.
package skills

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Group is a set of spellings of one skill. Name is the canonical term.
type Group struct {
	Name  string
	Terms []string
}

// Vocabulary is an immutable lookup of skill terms and their alias groups.
// It is safe for concurrent use.
type Vocabulary struct {
	groups   []Group
	byTerm   map[string]int
	entries  []entry
	patterns map[string]*regexp.Regexp
}

type entry struct {
	term    string
	group   int
	pattern *regexp.Regexp
}

// Occurrence is a vocabulary term located in a text.
type Occurrence struct {
	Term     string
	Group    string
	Position int
}

// defaultGroups holds spelling variants only. Related products (aws and
// azure, docker and kubernetes) are separate groups so that one never
// satisfies or evidences the other.
var defaultGroups = []Group{
	{Name: "python", Terms: []string{"python"}},
	{Name: "javascript", Terms: []string{"javascript"}},
	{Name: "typescript", Terms: []string{"typescript"}},
	{Name: "java", Terms: []string{"java"}},
	{Name: "golang", Terms: []string{"golang"}},
	{Name: "c++", Terms: []string{"c++"}},
	{Name: "c#", Terms: []string{"c#"}},
	{Name: "php", Terms: []string{"php"}},
	{Name: "ruby", Terms: []string{"ruby"}},
	{Name: "rust", Terms: []string{"rust"}},
	{Name: "react", Terms: []string{"react", "react.js", "reactjs"}},
	{Name: "nextjs", Terms: []string{"nextjs", "next.js"}},
	{Name: "vue", Terms: []string{"vue", "vue.js", "vuejs"}},
	{Name: "angular", Terms: []string{"angular", "angularjs"}},
	{Name: "svelte", Terms: []string{"svelte"}},
	{Name: "node", Terms: []string{"node", "node.js", "nodejs"}},
	{Name: "express", Terms: []string{"express", "express.js", "expressjs"}},
	{Name: "django", Terms: []string{"django"}},
	{Name: "flask", Terms: []string{"flask"}},
	{Name: "sql", Terms: []string{"sql"}},
	{Name: "postgresql", Terms: []string{"postgresql", "postgres", "psql"}},
	{Name: "mysql", Terms: []string{"mysql"}},
	{Name: "mssql", Terms: []string{"mssql", "sql server"}},
	{Name: "sqlite", Terms: []string{"sqlite"}},
	{Name: "database", Terms: []string{"database", "databases"}},
	{Name: "mongodb", Terms: []string{"mongodb", "mongo"}},
	{Name: "redis", Terms: []string{"redis"}},
	{Name: "elasticsearch", Terms: []string{"elasticsearch"}},
	{Name: "cloud", Terms: []string{"cloud"}},
	{Name: "aws", Terms: []string{"aws", "amazon web services"}},
	{Name: "gcp", Terms: []string{"gcp", "google cloud", "google cloud platform"}},
	{Name: "azure", Terms: []string{"azure", "microsoft azure"}},
	{Name: "devops", Terms: []string{"devops"}},
	{Name: "ci/cd", Terms: []string{"ci/cd", "cicd"}},
	{Name: "pipeline", Terms: []string{"pipeline", "pipelines"}},
	{Name: "docker", Terms: []string{"docker"}},
	{Name: "kubernetes", Terms: []string{"kubernetes", "k8s"}},
	{Name: "jenkins", Terms: []string{"jenkins"}},
	{Name: "git", Terms: []string{"git"}},
	{Name: "gitlab", Terms: []string{"gitlab"}},
	{Name: "github", Terms: []string{"github"}},
	{Name: "testing", Terms: []string{"testing"}},
	{Name: "unit testing", Terms: []string{"unit testing", "unit tests"}},
	{Name: "e2e", Terms: []string{"e2e", "end-to-end testing"}},
	{Name: "jest", Terms: []string{"jest"}},
	{Name: "pytest", Terms: []string{"pytest"}},
	{Name: "cypress", Terms: []string{"cypress"}},
	{Name: "api", Terms: []string{"api", "apis"}},
	{Name: "rest", Terms: []string{"rest", "restful"}},
	{Name: "graphql", Terms: []string{"graphql"}},
	{Name: "microservices", Terms: []string{"microservices", "microservice"}},
	{Name: "serverless", Terms: []string{"serverless"}},
	{Name: "html", Terms: []string{"html", "html5"}},
	{Name: "css", Terms: []string{"css", "css3"}},
	{Name: "scss", Terms: []string{"scss", "sass"}},
	{Name: "tailwind", Terms: []string{"tailwind", "tailwindcss"}},
	{Name: "bootstrap", Terms: []string{"bootstrap"}},
	{Name: "webpack", Terms: []string{"webpack"}},
	{Name: "vite", Terms: []string{"vite"}},
	{Name: "frontend", Terms: []string{"frontend", "front-end"}},
	{Name: "backend", Terms: []string{"backend", "back-end"}},
	{Name: "fullstack", Terms: []string{"fullstack", "full stack", "full-stack"}},
	{Name: "mobile", Terms: []string{"mobile"}},
	{Name: "android", Terms: []string{"android"}},
	{Name: "ios", Terms: []string{"ios"}},
	{Name: "machine learning", Terms: []string{"machine learning"}},
	{Name: "deep learning", Terms: []string{"deep learning"}},
	{Name: "tensorflow", Terms: []string{"tensorflow"}},
	{Name: "pytorch", Terms: []string{"pytorch"}},
	{Name: "nlp", Terms: []string{"nlp", "natural language processing"}},
	{Name: "computer vision", Terms: []string{"computer vision"}},
	{Name: "agile", Terms: []string{"agile"}},
	{Name: "scrum", Terms: []string{"scrum"}},
	{Name: "jira", Terms: []string{"jira"}},
	{Name: "figma", Terms: []string{"figma"}},
	{Name: "adobe", Terms: []string{"adobe"}},
	{Name: "sketch", Terms: []string{"sketch"}},
	{Name: "linux", Terms: []string{"linux"}},
	{Name: "performance", Terms: []string{"performance"}},
	{Name: "security", Terms: []string{"security"}},
	{Name: "scalability", Terms: []string{"scalability"}},
}

// Default returns the built-in vocabulary shared by all requests.
func Default() *Vocabulary {
	v, err := NewVocabulary(defaultGroups)
	if err != nil {
		panic(err)
	}
	return v
}

// NewVocabulary validates the groups and precompiles their term patterns.
// A term may belong to only one group.
func NewVocabulary(groups []Group) (*Vocabulary, error) {
	v := &Vocabulary{byTerm: make(map[string]int), patterns: make(map[string]*regexp.Regexp)}

	for _, g := range groups {
		name := normalize(g.Name)
		if name == "" {
			return nil, fmt.Errorf("skill group without a name")
		}

		idx := len(v.groups)
		group := Group{Name: name}
		terms := append([]string{name}, g.Terms...)
		for _, raw := range terms {
			term := normalize(raw)
			if term == "" {
				continue
			}
			if owner, ok := v.byTerm[term]; ok {
				if owner == idx {
					continue
				}
				return nil, fmt.Errorf("skill term %q belongs to both %q and %q", term, v.groups[owner].Name, name)
			}
			v.byTerm[term] = idx
			group.Terms = append(group.Terms, term)
			pattern := termPattern(term)
			v.patterns[term] = pattern
			v.entries = append(v.entries, entry{term: term, group: idx, pattern: pattern})
		}
		v.groups = append(v.groups, group)
	}

	return v, nil
}

// GroupOf returns the canonical group name of a term. Unknown terms are their
// own group.
func (v *Vocabulary) GroupOf(term string) string {
	term = normalize(term)
	if idx, ok := v.byTerm[term]; ok {
		return v.groups[idx].Name
	}
	return term
}

// Aliases returns every term of the group the given term belongs to.
func (v *Vocabulary) Aliases(term string) []string {
	term = normalize(term)
	idx, ok := v.byTerm[term]
	if !ok {
		if term == "" {
			return nil
		}
		return []string{term}
	}
	return append([]string(nil), v.groups[idx].Terms...)
}

// Equivalent reports whether two skills are equal or share an alias group.
func (v *Vocabulary) Equivalent(a, b string) bool {
	a, b = normalize(a), normalize(b)
	if a == "" || b == "" {
		return false
	}
	return a == b || v.GroupOf(a) == v.GroupOf(b)
}

// Find locates vocabulary terms in text, ordered by first occurrence. When
// terms overlap ("node" inside "node.js") only the longest one is kept.
func (v *Vocabulary) Find(text string) []Occurrence {
	lower := strings.ToLower(text)

	found := make([]Occurrence, 0)
	for _, e := range v.entries {
		loc := e.pattern.FindStringSubmatchIndex(lower)
		if loc == nil {
			continue
		}
		found = append(found, Occurrence{Term: e.term, Group: v.groups[e.group].Name, Position: loc[4]})
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].Position != found[j].Position {
			return found[i].Position < found[j].Position
		}
		return len(found[i].Term) > len(found[j].Term)
	})

	kept := found[:0]
	end := -1
	for _, occ := range found {
		if occ.Position < end {
			continue
		}
		kept = append(kept, occ)
		end = occ.Position + len(occ.Term)
	}
	return kept
}

// Terms returns the distinct terms found in text, at most limit of them when
// limit is positive.
func (v *Vocabulary) Terms(text string, limit int) []string {
	var terms []string
	for _, occ := range v.Find(text) {
		if limit > 0 && len(terms) >= limit {
			break
		}
		terms = append(terms, occ.Term)
	}
	return terms
}

// Required extracts the skills a target text asks for: the first surface
// term of every alias group mentioned.
func (v *Vocabulary) Required(text string) []string {
	seen := make(map[string]struct{})
	var required []string
	for _, occ := range v.Find(text) {
		if _, ok := seen[occ.Group]; ok {
			continue
		}
		seen[occ.Group] = struct{}{}
		required = append(required, occ.Term)
	}
	return required
}

// Contains reports whether text mentions term or one of its aliases.
func (v *Vocabulary) Contains(text, term string) bool {
	lower := strings.ToLower(text)
	for _, alias := range v.Aliases(term) {
		if v.pattern(alias).MatchString(lower) {
			return true
		}
	}
	return false
}

func (v *Vocabulary) pattern(term string) *regexp.Regexp {
	if p, ok := v.patterns[term]; ok {
		return p
	}
	return termPattern(term)
}

func termPattern(term string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^a-z0-9+#])(` + regexp.QuoteMeta(term) + `)($|[^a-z0-9+#])`)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
