package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/spigell/talent-ranker/internal/api"
	"github.com/spigell/talent-ranker/internal/profile"
	"github.com/spigell/talent-ranker/internal/scoring"
	"github.com/spigell/talent-ranker/internal/semantic"
	"github.com/spigell/talent-ranker/internal/session"
)

const (
	app       = "talent-ranker"
	envPrefix = "TALENT_RANKER"
)

type Config struct {
	Weights    scoring.Weights `mapstructure:"weights"`
	Extraction profile.Config  `mapstructure:"extraction"`
	Semantic   semantic.Config `mapstructure:"semantic"`
	Session    session.Config  `mapstructure:"session"`
	Timeouts   TimeoutsConfig  `mapstructure:"timeouts"`
	Limits     LimitsConfig    `mapstructure:"limits"`
	AI         AIConfig        `mapstructure:"ai"`
	Server     api.Config      `mapstructure:"server"`
}

type TimeoutsConfig struct {
	Model   time.Duration `mapstructure:"model"`
	Request time.Duration `mapstructure:"request"`
}

type LimitsConfig struct {
	MaxResumes  int `mapstructure:"max-resumes"`
	Workers     int `mapstructure:"workers"`
	MaxUploadMB int `mapstructure:"max-upload-mb"`
}

type AIConfig struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	APIKeyEnv      string `mapstructure:"api-key-env"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxRetries     int    `mapstructure:"max-retries"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "talent-ranker ranks resumes against a job description and answers grounded questions about candidates",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is talent-ranker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	defaults := scoring.DefaultWeights()
	v.SetDefault("weights.semantic", defaults.Semantic)
	v.SetDefault("weights.skill", defaults.Skill)
	v.SetDefault("weights.experience", defaults.Experience)

	v.SetDefault("extraction.max-chars", 500000)
	v.SetDefault("extraction.min-confidence", 0.5)
	v.SetDefault("extraction.llm-max-chars", 20000)
	v.SetDefault("extraction.use-llm", false)

	v.SetDefault("semantic.provider", semantic.ProviderHashing)
	v.SetDefault("semantic.chunk-size", 500)
	v.SetDefault("semantic.max-chunks", 24)
	v.SetDefault("semantic.dimensions", 384)
	v.SetDefault("semantic.cache-size", 512)

	v.SetDefault("session.backend", session.BackendMemory)
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.max-turns", 60)
	v.SetDefault("session.sweep-interval", "5m")
	v.SetDefault("session.redis.addr", "")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.key-prefix", "")

	v.SetDefault("timeouts.model", "30s")
	v.SetDefault("timeouts.request", "5m")

	v.SetDefault("limits.max-resumes", 100)
	v.SetDefault("limits.workers", 4)
	v.SetDefault("limits.max-upload-mb", 50)

	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.api-key-env", "GEMINI_API_KEY")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.embedding-model", "text-embedding-004")
	v.SetDefault("ai.gemini.max-retries", 3)
	v.SetDefault("ai.gemini.max-log-length", 200)

	v.SetDefault("server.address", ":8000")
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every key has a default, so a missing config file is fine. A broken
	// one, or an explicitly requested one that is absent, is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			cobra.CheckErr(fmt.Errorf("reading config: %w", err))
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config.Server.MaxUploadMB <= 0 {
		config.Server.MaxUploadMB = config.Limits.MaxUploadMB
	}
	return config, nil
}
