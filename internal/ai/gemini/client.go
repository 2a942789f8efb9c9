package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spigell/talent-ranker/internal/logger"
	"github.com/spigell/talent-ranker/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	providerName          = "gemini"
	defaultModel          = "gemini-2.5-flash"
	defaultEmbeddingModel = "text-embedding-004"
	defaultMaxRetries     = 3
	defaultMaxLogLength   = 200
	baseRetryDelay        = time.Second
	maxRetryDelay         = 20 * time.Second
)

var sleep = utils.WaitFor

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)

// Config configures both the generator and the embedder.
type Config struct {
	APIKey         string `mapstructure:"-"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxRetries     int    `mapstructure:"max-retries"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
}

type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client to provide prompt-based interactions.
type Generator struct {
	models     contentModels
	model      string
	maxRetries int
	maxLogLen  int
	logger     *zap.Logger
}

func newClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return client, nil
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, cfg Config, log *zap.Logger) (*Generator, error) {
	client, err := newClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	return newGenerator(client.Models, model, cfg, log), nil
}

func newGenerator(models contentModels, model string, cfg Config, log *zap.Logger) *Generator {
	g := &Generator{
		models:     models,
		model:      model,
		maxRetries: cfg.MaxRetries,
		maxLogLen:  cfg.MaxLogLength,
	}
	if g.maxRetries <= 0 {
		g.maxRetries = defaultMaxRetries
	}
	if g.maxLogLen <= 0 {
		g.maxLogLen = defaultMaxLogLength
	}
	g.logger = logger.WithCommonFields(log, providerName, model)
	return g
}

// GenerateContent sends the prompt with the given system instruction and
// returns the concatenated textual response.
func (g *Generator) GenerateContent(ctx context.Context, system, prompt string) (string, error) {
	return g.generate(ctx, system, prompt, "")
}

// GenerateJSON asks for a JSON response and decodes it into a generic map.
func (g *Generator) GenerateJSON(ctx context.Context, system, prompt string) (map[string]any, error) {
	raw, err := g.generate(ctx, system, prompt, "application/json")
	if err != nil {
		return nil, err
	}
	return decodeJSONObject(raw)
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func (g *Generator) generate(ctx context.Context, system, prompt, mimeType string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	temperature := float32(0.1)
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: mimeType,
	}
	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	g.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, g.maxLogLen)),
	)

	var output string
	err := withRetry(ctx, g.logger, g.maxRetries, func() error {
		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
		if err != nil {
			return err
		}
		output = responseText(resp)
		if output == "" {
			return errors.New("gemini api returned empty response")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	g.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, g.maxLogLen)),
	)

	return output, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}

// withRetry runs call up to attempts times, backing off exponentially between
// temporary failures. Quota errors asking for a longer pause than
// maxRetryDelay are returned immediately.
func withRetry(ctx context.Context, log *zap.Logger, attempts int, call func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = call()
		if err == nil {
			return nil
		}

		delay, retryable := retryDelay(err, attempt)
		if !retryable || attempt == attempts {
			return err
		}

		log.Warn("gemini call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if waitErr := sleep(ctx, delay); waitErr != nil {
			return errors.Join(err, waitErr)
		}
	}
	return err
}

func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	delay := baseRetryDelay << (attempt - 1)

	switch apiErr.Code {
	case http.StatusTooManyRequests:
		if requested, ok := parseRetryAfter(apiErr.Message); ok {
			if requested > maxRetryDelay {
				return 0, false
			}
			delay = requested
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
	default:
		return 0, false
	}

	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay, true
}

func parseRetryAfter(message string) (time.Duration, bool) {
	match := retryAfterPattern.FindStringSubmatch(message)
	if len(match) < 2 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}
