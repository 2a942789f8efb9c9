package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/talent-ranker/internal/ai"
	"github.com/spigell/talent-ranker/internal/utils"
)

const (
	llmName            = "gemini"
	defaultLLMMaxChars = 20000
	systemInstruction  = "You are a precise resume parser. Answer with JSON only."
)

//go:embed prompt.md
var promptTemplate string

type llmProfile struct {
	Name       string   `mapstructure:"name"`
	Skills     []string `mapstructure:"skills"`
	Experience []string `mapstructure:"experience"`
	Education  []string `mapstructure:"education"`
}

type llmStrategy struct {
	toggle
	generator *ai.Handle[ai.Generator]
	maxChars  int
	timeout   time.Duration
}

// NewLLM creates the model-backed strategy. The generator handle is resolved
// lazily on first use, so a missing API key only disables this pass.
func NewLLM(generator *ai.Handle[ai.Generator], maxChars int, timeout time.Duration) Strategy {
	if maxChars <= 0 {
		maxChars = defaultLLMMaxChars
	}
	return &llmStrategy{generator: generator, maxChars: maxChars, timeout: timeout}
}

func (l *llmStrategy) Name() string { return llmName }

func (l *llmStrategy) Extract(ctx context.Context, text string) (Fields, float64, error) {
	if l.generator == nil {
		return Fields{}, 0, errors.New("generator is not configured")
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	generator, err := l.generator.Get(ctx)
	if err != nil {
		return Fields{}, 0, fmt.Errorf("initialise generator: %w", err)
	}

	raw, err := generator.GenerateJSON(ctx, systemInstruction, buildPrompt(utils.TruncateRunes(text, l.maxChars)))
	if err != nil {
		return Fields{}, 0, err
	}

	parsed, err := decodeProfile(raw)
	if err != nil {
		return Fields{}, 0, err
	}

	f := Fields{
		Name:       strings.TrimSpace(parsed.Name),
		Skills:     parsed.Skills,
		Experience: parsed.Experience,
		Education:  parsed.Education,
	}

	confidence := 0.5
	if len(f.Skills) > 0 {
		confidence = 1
	}
	return f, confidence, nil
}

func (l *llmStrategy) Status() Status {
	details := map[string]string{"max_chars": limitDetail(l.maxChars)}
	if l.timeout > 0 {
		details["timeout"] = l.timeout.String()
	}
	return Status{Name: l.Name(), Enabled: l.IsEnabled(), Reason: l.reason, Details: details}
}

func buildPrompt(resume string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Resume text:\n{{RESUME_TEXT}}\n\nJSON Response:"
	}
	return strings.ReplaceAll(template, "{{RESUME_TEXT}}", resume)
}

func decodeProfile(raw map[string]any) (llmProfile, error) {
	var out llmProfile
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return out, fmt.Errorf("decode extraction response: %w", err)
	}
	return out, nil
}
