package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Deezer    DeezerConfig    `yaml:"deezer" mapstructure:"deezer"`
	Genius    GeniusConfig    `yaml:"genius" mapstructure:"genius"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Merge     MergeConfig     `yaml:"merge" mapstructure:"merge"`
	Rubric    RubricConfig    `yaml:"rubric" mapstructure:"rubric"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// DeezerConfig holds settings for the track search and feature provider.
type DeezerConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeniusConfig holds settings for the lyrics provider.
type GeniusConfig struct {
	Token          string  `yaml:"token" mapstructure:"token"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds settings for the gap-fill inference provider.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PipelineConfig configures stage scheduling and matching behavior.
type PipelineConfig struct {
	Workers             int      `yaml:"workers" mapstructure:"workers"`
	SimilarityThreshold float64  `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	TieMargin           float64  `yaml:"tie_margin" mapstructure:"tie_margin"`
	MaxCandidates       int      `yaml:"max_candidates" mapstructure:"max_candidates"`
	FillAttributes      []string `yaml:"fill_attributes" mapstructure:"fill_attributes"`

	RetryMaxAttempts      int `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs int `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs     int `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`

	BreakerFailureThreshold int `yaml:"breaker_failure_threshold" mapstructure:"breaker_failure_threshold"`
	BreakerResetTimeoutSecs int `yaml:"breaker_reset_timeout_secs" mapstructure:"breaker_reset_timeout_secs"`
}

// MergeConfig declares the precedence order among sourced stages. Earlier
// stages rank higher; stages not listed rank below all listed ones.
type MergeConfig struct {
	StageRanking []string `yaml:"stage_ranking" mapstructure:"stage_ranking"`
}

// RubricConfig points at an optional rubric override file.
type RubricConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the read-only status API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRACKLIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets get empty defaults so viper knows the keys exist;
	// AutomaticEnv only resolves registered keys during Unmarshal.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "tracklist.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("genius.token", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("deezer.base_url", "https://api.deezer.com")
	v.SetDefault("deezer.requests_per_sec", 5)
	v.SetDefault("deezer.timeout_secs", 15)
	v.SetDefault("genius.base_url", "https://api.genius.com")
	v.SetDefault("genius.requests_per_sec", 2)
	v.SetDefault("genius.timeout_secs", 20)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.similarity_threshold", 0.80)
	v.SetDefault("pipeline.tie_margin", 0.05)
	v.SetDefault("pipeline.max_candidates", 5)
	v.SetDefault("pipeline.fill_attributes", []string{"bpm", "mode", "valence", "lyric_valence", "lyric_arousal"})
	v.SetDefault("pipeline.retry_max_attempts", 3)
	v.SetDefault("pipeline.retry_initial_backoff_ms", 500)
	v.SetDefault("pipeline.retry_max_backoff_ms", 30000)
	v.SetDefault("pipeline.breaker_failure_threshold", 5)
	v.SetDefault("pipeline.breaker_reset_timeout_secs", 30)
	v.SetDefault("merge.stage_ranking", []string{"features", "match", "lyrics", "text"})
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
