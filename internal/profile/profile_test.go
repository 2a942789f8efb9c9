package profile

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/spigell/talent-ranker/internal/ai"
	"github.com/spigell/talent-ranker/internal/skills"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const sectionedResume = `Jane Doe
Senior Backend Engineer

SKILLS
Languages: Go, Python, go
Kubernetes; PostgreSQL

EXPERIENCE
Lead Engineer, Acme Corp, 2019-2024
Backend Developer, Initech, 2015-2019

EDUCATION
B.Sc. Computer Science, State University`

type stubGenerator struct {
	response map[string]any
	err      error
	prompts  []string
}

func (s *stubGenerator) GenerateContent(context.Context, string, string) (string, error) {
	return "", errors.New("not used")
}

func (s *stubGenerator) GenerateJSON(_ context.Context, _ string, prompt string) (map[string]any, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func (s *stubGenerator) Model() string { return "stub-model" }

func generatorHandle(g ai.Generator) *ai.Handle[ai.Generator] {
	return ai.Ready(g)
}

func TestExtractRejectsEmptyText(t *testing.T) {
	t.Parallel()

	e := NewExtractor(Config{}, nil, NewDictionary(skills.Default()))
	if _, err := e.Extract(context.Background(), Input{ID: "c1", Text: "  \n\t "}); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestExtractUsesSectionsWhenLLMDisabled(t *testing.T) {
	t.Parallel()

	strategies := DefaultStrategies(Config{}, skills.Default(), nil, 0)
	e := NewExtractor(Config{}, zap.NewNop(), strategies...)

	p, err := e.Extract(context.Background(), Input{ID: "c1", Filename: "jane.pdf", Text: sectionedResume})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.ExtractionSource != sectionsName {
		t.Fatalf("expected sections strategy, got %q", p.ExtractionSource)
	}
	if p.Degraded {
		t.Fatal("a confident first strategy must not be degraded")
	}
	if want := []string{"Go", "Python", "Kubernetes", "PostgreSQL"}; !reflect.DeepEqual(p.Skills, want) {
		t.Fatalf("expected %v, got %v", want, p.Skills)
	}
	if len(p.ExperienceEntries) != 2 || len(p.EducationEntries) != 1 {
		t.Fatalf("unexpected entries: %v / %v", p.ExperienceEntries, p.EducationEntries)
	}
	if p.Name != "Jane Doe" {
		t.Fatalf("unexpected name %q", p.Name)
	}
	if p.RawText != sectionedResume {
		t.Fatal("raw text must be kept unchanged")
	}
}

func TestExtractFallsBackToDictionary(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.InfoLevel)
	text := "Worked as a software engineer building Docker and AWS tooling in Python for 6 years."

	e := NewExtractor(Config{}, zap.New(core), DefaultStrategies(Config{}, skills.Default(), nil, 0)...)
	p, err := e.Extract(context.Background(), Input{ID: "c2", Filename: "john_smith-cv.txt", Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.ExtractionSource != dictionaryName || !p.Degraded {
		t.Fatalf("expected degraded dictionary profile, got %q degraded=%v", p.ExtractionSource, p.Degraded)
	}
	if want := []string{"docker", "aws", "python"}; !reflect.DeepEqual(p.Skills, want) {
		t.Fatalf("expected %v, got %v", want, p.Skills)
	}
	if p.YearsMentioned != 6 {
		t.Fatalf("expected 6 years, got %d", p.YearsMentioned)
	}
	if p.Name != "john smith cv" {
		t.Fatalf("expected file name fallback, got %q", p.Name)
	}
	if observed.FilterMessage("extraction degraded").Len() != 1 {
		t.Fatal("expected degraded extraction to be logged")
	}
}

func TestExtractPrefersLLMWhenConfident(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{response: map[string]any{
		"name":       "Jane Q. Doe",
		"skills":     []any{"Go", "GO", "Terraform"},
		"experience": "Lead Engineer, Acme",
		"education":  []any{"B.Sc. Computer Science"},
	}}

	cfg := Config{UseLLM: true, LLMMaxChars: 50}
	e := NewExtractor(cfg, nil, DefaultStrategies(cfg, skills.Default(), generatorHandle(gen), 0)...)

	p, err := e.Extract(context.Background(), Input{ID: "c3", Text: sectionedResume})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.ExtractionSource != llmName || p.Degraded {
		t.Fatalf("expected confident llm profile, got %q degraded=%v", p.ExtractionSource, p.Degraded)
	}
	if want := []string{"Go", "Terraform"}; !reflect.DeepEqual(p.Skills, want) {
		t.Fatalf("expected %v, got %v", want, p.Skills)
	}
	if want := []string{"Lead Engineer, Acme"}; !reflect.DeepEqual(p.ExperienceEntries, want) {
		t.Fatalf("expected single string to decode into a list, got %v", p.ExperienceEntries)
	}
	if p.Name != "Jane Q. Doe" {
		t.Fatalf("unexpected name %q", p.Name)
	}
	if len(gen.prompts) != 1 || strings.Contains(gen.prompts[0], "State University") {
		t.Fatal("expected the prompt to carry a truncated resume")
	}
}

func TestExtractFallsBackWhenLLMFails(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{err: errors.New("quota exhausted")}
	cfg := Config{UseLLM: true}
	e := NewExtractor(cfg, nil, DefaultStrategies(cfg, skills.Default(), generatorHandle(gen), 0)...)

	p, err := e.Extract(context.Background(), Input{ID: "c4", Text: sectionedResume})
	if err != nil {
		t.Fatalf("extraction failures must not fail the call: %v", err)
	}
	if p.ExtractionSource != sectionsName || !p.Degraded {
		t.Fatalf("expected degraded sections profile, got %q degraded=%v", p.ExtractionSource, p.Degraded)
	}
}

func TestExtractWithNothingFound(t *testing.T) {
	t.Parallel()

	e := NewExtractor(Config{}, nil, NewDictionary(skills.Default()))
	p, err := e.Extract(context.Background(), Input{ID: "c5", Filename: "blank.txt", Text: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Degraded || len(p.Skills) != 0 || p.RawText != "hello" {
		t.Fatalf("expected empty degraded profile, got %+v", p)
	}
}

func TestDescribeReportsDisabledStrategies(t *testing.T) {
	t.Parallel()

	statuses := Describe(DefaultStrategies(Config{}, skills.Default(), nil, 0))
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if statuses[0].Name != llmName || statuses[0].Enabled || statuses[0].Reason == "" {
		t.Fatalf("unexpected llm status: %+v", statuses[0])
	}
	if !statuses[1].Enabled || !statuses[2].Enabled {
		t.Fatal("deterministic strategies must stay enabled")
	}
}

func TestDedupeFold(t *testing.T) {
	t.Parallel()

	got := DedupeFold([]string{"Node.js", " node.js ", "", "SQL", "sql", "Go"}, 2)
	if want := []string{"Node.js", "SQL"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
