package grounding

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spigell/talent-ranker/internal/session"
	"github.com/spigell/talent-ranker/internal/skills"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const resume = `Jane Doe
jane@example.com | +1 555 123 4567 | linkedin.com/in/jane
Summary
Backend engineer with 6 years of experience building Go services.
Experience
Senior Engineer at Acme Corp, 2019 - 2024
Led a team of five engineers migrating services to Kubernetes.
Built REST APIs in Python and Django for the billing platform.
Projects
Developed a web dashboard in React for monitoring deployments.
Built a classification model with PyTorch to predict churn.
Education
B.Tech in Computer Science, Example Institute of Technology
CGPA: 8.7`

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model offline")
}

func newEngine(store session.Store) *Engine {
	return New(skills.Default(), store, nil, nil)
}

func TestAskIntents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		question string
		intent   Intent
		answer   string
		evidence string
	}{
		{
			name:     "leadership",
			question: "Did they lead a team?",
			intent:   IntentLeadership,
			answer:   "Yes, shows leadership experience.",
			evidence: "Led a team of five engineers migrating services to Kubernetes.",
		},
		{
			name:     "tenure",
			question: "How many years of experience does she have?",
			intent:   IntentTenure,
			answer:   "Approximately 6 years of experience mentioned.",
			evidence: "Backend engineer with 6 years of experience building Go services.",
		},
		{
			name:     "gpa",
			question: "What was the CGPA?",
			intent:   IntentGPA,
			answer:   "CGPA/GPA: 8.7",
			evidence: "CGPA: 8.7",
		},
		{
			name:     "education",
			question: "Which university did she attend?",
			intent:   IntentEducation,
			answer:   "Education: B.Tech in Computer Science, Example Institute of Technology",
			evidence: "B.Tech in Computer Science, Example Institute of Technology",
		},
		{
			name:     "web projects",
			question: "What web projects has she built?",
			intent:   IntentProjects,
			answer:   "Web projects: Developed a web dashboard in React for monitoring deployments.",
			evidence: "Developed a web dashboard in React for monitoring deployments.",
		},
		{
			name:     "technology",
			question: "Does she know Kubernetes?",
			intent:   IntentTechnology,
			answer:   "Yes, the resume mentions kubernetes.",
			evidence: "Led a team of five engineers migrating services to Kubernetes.",
		},
		{
			name:     "general",
			question: "Tell me about billing.",
			intent:   IntentGeneral,
			answer:   "From the resume: Built REST APIs in Python and Django for the billing platform.",
			evidence: "Built REST APIs in Python and Django for the billing platform.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := newEngine(nil).Ask(context.Background(), Request{Question: tt.question, ResumeText: resume})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Intent != tt.intent {
				t.Fatalf("expected intent %s, got %s", tt.intent, got.Intent)
			}
			if got.Text != tt.answer {
				t.Fatalf("expected answer %q, got %q", tt.answer, got.Text)
			}
			if !got.Grounded || len(got.Evidence) == 0 || got.Evidence[0] != tt.evidence {
				t.Fatalf("expected evidence %q, got %v", tt.evidence, got.Evidence)
			}
		})
	}
}

func TestAskWithoutEvidenceSaysSo(t *testing.T) {
	t.Parallel()

	plain := "Software developer writing Python data pipelines for analytics.\nEnjoys hiking and photography on weekends."

	tests := []struct {
		question string
		intent   Intent
	}{
		{question: "Did they lead a team?", intent: IntentLeadership},
		{question: "How many years of experience?", intent: IntentTenure},
		{question: "What is the GPA?", intent: IntentGPA},
		{question: "Which college did they attend?", intent: IntentEducation},
		{question: "Any experience with Rust?", intent: IntentTenure},
		{question: "Does the candidate know Kubernetes?", intent: IntentTechnology},
		{question: "Tell me about sailing.", intent: IntentGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			t.Parallel()

			got, err := newEngine(nil).Ask(context.Background(), Request{Question: tt.question, ResumeText: plain})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Intent != tt.intent {
				t.Fatalf("expected intent %s, got %s", tt.intent, got.Intent)
			}
			if !strings.Contains(strings.ToLower(got.Text), "no direct evidence") {
				t.Fatalf("expected an explicit no-evidence answer, got %q", got.Text)
			}
			if got.Grounded || len(got.Evidence) != 0 {
				t.Fatalf("expected no evidence, got %v", got.Evidence)
			}
		})
	}
}

func TestAskResolvesFollowUpFromSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := session.NewMemory(time.Hour, 10)
	engine := newEngine(store)

	if _, err := engine.Ask(ctx, Request{CandidateID: "c1", Question: "Does she know Python?", ResumeText: resume}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := engine.Ask(ctx, Request{CandidateID: "c1", Question: "How long has she used it?", ResumeText: resume})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "python is mentioned, but years of experience with it are not quantified." {
		t.Fatalf("unexpected answer %q", got.Text)
	}

	history, _ := store.History(ctx, "c1")
	if len(history) != 4 || history[2].Role != session.RoleUser || history[3].Text != got.Text {
		t.Fatalf("expected both question/answer pairs in the session, got %v", history)
	}
}

func TestAskUsesClientHistory(t *testing.T) {
	t.Parallel()

	got, err := newEngine(nil).Ask(context.Background(), Request{
		Question:   "How long with it?",
		ResumeText: "Platform engineer with 4 years of Kubernetes operations experience.",
		History: []session.Turn{
			{Role: session.RoleUser, Text: "Does she know Kubernetes?"},
			{Role: session.RoleAssistant, Text: "Yes, the resume mentions kubernetes."},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "Approximately 4 years of experience with kubernetes mentioned." {
		t.Fatalf("unexpected answer %q", got.Text)
	}
}

func TestAskCancelledDoesNotAppend(t *testing.T) {
	t.Parallel()

	store := session.NewMemory(time.Hour, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newEngine(store).Ask(ctx, Request{CandidateID: "c1", Question: "Did they lead a team?", ResumeText: resume}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if history, _ := store.History(context.Background(), "c1"); len(history) != 0 {
		t.Fatalf("cancelled question must not be stored, got %v", history)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	t.Parallel()

	if _, err := newEngine(nil).Ask(context.Background(), Request{Question: "  ", ResumeText: resume}); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
}

func TestAskDegradesWhenEmbeddingFails(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	engine := New(skills.Default(), nil, failingEmbedder{}, zap.New(core))

	got, err := engine.Ask(context.Background(), Request{Question: "Did they lead a team?", ResumeText: resume})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Grounded {
		t.Fatalf("expected keyword ranking to still find evidence, got %q", got.Text)
	}
	if logs.FilterMessage("ranking sentences by keywords only").Len() != 1 {
		t.Fatalf("expected a warning, got %v", logs.All())
	}
}

func TestIsNoise(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want bool
	}{
		{text: "Reach me at jane@example.com any time", want: true},
		{text: "portfolio at janedoe.io for details", want: true},
		{text: "Too short", want: true},
		{text: "Go | Python | SQL | Docker | Kubernetes", want: true},
		{text: "2019 2020 2021 2022 2023 2024 abc", want: true},
		{text: "Designed billing services handling payments", want: false},
	}

	for _, tt := range tests {
		if got := isNoise(tt.text); got != tt.want {
			t.Fatalf("isNoise(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestSectionSlice(t *testing.T) {
	t.Parallel()

	doc := prepare(resume)
	got := doc.sectionSlice("project", 18)
	if len(got) != 2 || !strings.HasPrefix(got[0], "Developed a web dashboard") {
		t.Fatalf("unexpected project section %v", got)
	}
	if doc.sectionSlice("certification", 5) != nil {
		t.Fatal("expected no section for a missing heading")
	}
}

func TestAskTechnologyIgnoresRelatedProducts(t *testing.T) {
	t.Parallel()

	text := "Deployed serverless services on AWS Lambda for the payments team.\nPackaged every service with Docker images."

	tests := []struct {
		question string
		tech     string
		intent   Intent
	}{
		{question: "Do they know Azure?", tech: "azure", intent: IntentTechnology},
		{question: "Have they used Kubernetes?", tech: "kubernetes", intent: IntentTechnology},
		{question: "Do they know Jenkins?", tech: "jenkins", intent: IntentTechnology},
		{question: "How many years of GCP experience?", tech: "gcp", intent: IntentTenure},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			t.Parallel()

			got, err := newEngine(nil).Ask(context.Background(), Request{Question: tt.question, ResumeText: text})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Intent != tt.intent {
				t.Fatalf("expected intent %s, got %s", tt.intent, got.Intent)
			}
			if want := "No direct evidence of " + tt.tech + " was found in the resume."; got.Text != want {
				t.Fatalf("expected %q, got %q", want, got.Text)
			}
			if got.Grounded || len(got.Evidence) != 0 {
				t.Fatalf("expected no evidence, got %v", got.Evidence)
			}
		})
	}

	got, err := newEngine(nil).Ask(context.Background(), Request{Question: "Do they know Amazon Web Services?", ResumeText: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Grounded || got.Evidence[0] != "Deployed serverless services on AWS Lambda for the payments team." {
		t.Fatalf("expected the AWS line as evidence, got %q %v", got.Text, got.Evidence)
	}
}
