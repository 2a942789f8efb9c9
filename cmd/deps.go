package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/spigell/talent-ranker/internal/ai"
	"github.com/spigell/talent-ranker/internal/ai/gemini"
	"github.com/spigell/talent-ranker/internal/engine"
	"github.com/spigell/talent-ranker/internal/logger"
	"github.com/spigell/talent-ranker/internal/profile"
	"github.com/spigell/talent-ranker/internal/secrets"
	"github.com/spigell/talent-ranker/internal/semantic"
	"github.com/spigell/talent-ranker/internal/session"
	"github.com/spigell/talent-ranker/internal/skills"
	"go.uber.org/zap"
)

// runtime is everything a command needs to talk to the engine.
type runtime struct {
	config *Config
	logger *zap.Logger
	engine *engine.Engine
	store  session.Store
}

func (r *runtime) Close() {
	if closer, ok := r.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			r.logger.Warn("closing the session store", zap.Error(err))
		}
	}
	_ = r.logger.Sync()
}

// setup builds the logger, reads the config and wires the engine. The ctx
// bounds background work such as session sweeping.
func setup(ctx context.Context) *runtime {
	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		cobra.CheckErr(fmt.Errorf("creating a logger: %w", err))
	}

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(*config), "", "  ")
	log.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	vocab := skills.Default()

	var generator *ai.Handle[ai.Generator]
	if config.Extraction.UseLLM {
		generator = ai.NewHandle(func(ctx context.Context) (ai.Generator, error) {
			cfg, err := geminiConfig(config.AI.Gemini)
			if err != nil {
				return nil, err
			}
			g, err := gemini.NewGenerator(ctx, cfg, log)
			if err != nil {
				return nil, err
			}
			return g, nil
		})
	}

	embedder, err := semantic.NewEmbedderHandle(config.Semantic, func(ctx context.Context) (ai.Embedder, error) {
		cfg, err := geminiConfig(config.AI.Gemini)
		if err != nil {
			return nil, err
		}
		e, err := gemini.NewEmbedder(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return e, nil
	})
	if err != nil {
		log.Fatal("configuring the semantic scorer", zap.Error(err))
	}

	strategies := profile.DefaultStrategies(config.Extraction, vocab, generator, config.Timeouts.Model)
	for _, status := range profile.Describe(strategies) {
		log.Debug("extraction strategy",
			zap.String(logger.FieldStrategy, status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
		)
	}

	store, err := session.Open(ctx, config.Session, log)
	if err != nil {
		log.Fatal("opening the session store", zap.Error(err))
	}

	eng := engine.New(engine.Config{
		Workers:        config.Limits.Workers,
		MaxResumes:     config.Limits.MaxResumes,
		RequestTimeout: config.Timeouts.Request,
		Weights:        &config.Weights,
	}, engine.Deps{
		Extractor:  profile.NewExtractor(config.Extraction, log, strategies...),
		Scorer:     semantic.NewScorer(embedder, config.Semantic, config.Timeouts.Model, log),
		Vocabulary: vocab,
		Sessions:   store,
	}, log)

	log.Info("starting the talent-ranker",
		zap.String("version", version),
		zap.String("embeddings", semantic.ProviderName(config.Semantic.Provider)),
		zap.Bool("llm_extraction", config.Extraction.UseLLM),
		zap.String("session_backend", config.Session.Backend),
	)

	return &runtime{config: config, logger: log, engine: eng, store: store}
}

// geminiConfig resolves the API key lazily, so commands that never reach the
// model do not require one.
func geminiConfig(cfg GeminiConfig) (gemini.Config, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.APIKeyFile,
		Env:   cfg.APIKeyEnv,
		Value: cfg.APIKey,
	})
	if err != nil {
		return gemini.Config{}, fmt.Errorf("%w (set ai.gemini.api-key-file or %s)", err, cfg.APIKeyEnv)
	}

	return gemini.Config{
		APIKey:         apiKey,
		Model:          cfg.Model,
		EmbeddingModel: cfg.EmbeddingModel,
		MaxRetries:     cfg.MaxRetries,
		MaxLogLength:   cfg.MaxLogLength,
	}, nil
}

func redacted(c Config) Config {
	if c.AI.Gemini.APIKey != "" {
		c.AI.Gemini.APIKey = "***"
	}
	if c.Session.Redis.Password != "" {
		c.Session.Redis.Password = "***"
	}
	return c
}
