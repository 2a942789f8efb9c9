package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeContentModels struct {
	mu      sync.Mutex
	calls   []generateCall
	results []fakeResult
}

type generateCall struct {
	model  string
	prompt string
	config *genai.GenerateContentConfig
}

type fakeResult struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (f *fakeContentModels) enqueue(resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, fakeResult{resp: resp, err: err})
}

func (f *fakeContentModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prompt := ""
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		prompt = contents[0].Parts[0].Text
	}
	f.calls = append(f.calls, generateCall{model: model, prompt: prompt, config: config})

	if len(f.results) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.results[0]
	f.results = f.results[1:]
	return res.resp, res.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func noSleep(t *testing.T) {
	t.Helper()
	original := sleep
	sleep = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { sleep = original })
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	noSleep(t)

	models := &fakeContentModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"})
	models.enqueue(textResponse("retry ok"), nil)

	g := newGenerator(models, "gemini-pro", Config{MaxRetries: 2}, zap.NewNop())

	output, err := g.GenerateContent(context.Background(), "system", "message")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}
	if len(models.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.calls))
	}

	for _, call := range models.calls {
		if call.model != "gemini-pro" {
			t.Fatalf("unexpected model %q", call.model)
		}
		if call.config == nil || call.config.SystemInstruction == nil {
			t.Fatal("expected system instruction to be set")
		}
		if got := call.config.SystemInstruction.Parts[0].Text; got != "system" {
			t.Fatalf("unexpected system instruction: %q", got)
		}
		if call.prompt != "message" {
			t.Fatalf("unexpected prompt: %q", call.prompt)
		}
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	noSleep(t)

	models := &fakeContentModels{}
	tempErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	models.enqueue(nil, tempErr)
	models.enqueue(nil, tempErr)

	g := newGenerator(models, "gemini-pro", Config{MaxRetries: 2}, zap.NewNop())

	if _, err := g.GenerateContent(context.Background(), "sys", "msg"); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if len(models.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.calls))
	}
}

func TestGeneratorDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	models := &fakeContentModels{}
	models.enqueue(nil, genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	})

	g := newGenerator(models, "gemini-pro", Config{MaxRetries: 3}, zap.NewNop())

	if _, err := g.GenerateContent(context.Background(), "sys", "msg"); err == nil {
		t.Fatal("expected error when quota delay too long")
	}
	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	models := &fakeContentModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"})

	g := newGenerator(models, "gemini-pro", Config{MaxRetries: 3}, zap.NewNop())

	if _, err := g.GenerateContent(context.Background(), "", "msg"); err == nil {
		t.Fatal("expected error")
	}
	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}
	if models.calls[0].config.SystemInstruction != nil {
		t.Fatal("empty system prompt must not set an instruction")
	}
}

func TestGeneratorRejectsEmptyPrompt(t *testing.T) {
	g := newGenerator(&fakeContentModels{}, "gemini-pro", Config{}, nil)
	if _, err := g.GenerateContent(context.Background(), "sys", "   "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}

func TestGenerateJSONStripsFences(t *testing.T) {
	models := &fakeContentModels{}
	models.enqueue(textResponse("```json\n{\"name\": \"Ada Lovelace\", \"skills\": [\"Go\"]}\n```"), nil)

	g := newGenerator(models, "gemini-pro", Config{}, zap.NewNop())

	data, err := g.GenerateJSON(context.Background(), "sys", "extract")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data["name"] != "Ada Lovelace" {
		t.Fatalf("unexpected name: %v", data["name"])
	}
	if got := models.calls[0].config.ResponseMIMEType; got != "application/json" {
		t.Fatalf("expected JSON mime type, got %q", got)
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "prose around object", input: "Here you go: {\"a\":1} thanks", want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := extractJSON(tt.input); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	if d, ok := parseRetryAfter("Please retry in 2.5s."); !ok || d != 2500*time.Millisecond {
		t.Fatalf("unexpected delay %v (%v)", d, ok)
	}
	if _, ok := parseRetryAfter("quota exhausted"); ok {
		t.Fatal("expected no delay to be parsed")
	}
}
