// Package config loads runtime settings from SURGERY_* environment variables.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// Prefix is prepended to every environment variable name.
const Prefix = "SURGERY"

// Config holds settings for the oracle, codec, batch runner and HTTP server.
type Config struct {
	OracleEndpoint string        `envconfig:"ORACLE_ENDPOINT" default:"https://api.openai.com/v1/chat/completions"`
	OracleAPIKey   string        `envconfig:"ORACLE_API_KEY"`
	OracleModel    string        `envconfig:"ORACLE_MODEL" default:"gpt-4o-mini"`
	OracleTimeout  time.Duration `envconfig:"ORACLE_TIMEOUT" default:"30s"`

	FFmpegPath    string        `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	CodecTimeout  time.Duration `envconfig:"CODEC_TIMEOUT" default:"10m"`
	MP3Bitrate    string        `envconfig:"MP3_BITRATE" default:"192k"`
	SilenceGap    time.Duration `envconfig:"SILENCE_GAP" default:"2s"`
	SilenceThresh float64       `envconfig:"SILENCE_THRESHOLD_DB" default:"-50"`

	Workers int `envconfig:"WORKERS" default:"0"`

	ListenAddr     string   `envconfig:"LISTEN_ADDR" default:":8080"`
	AllowOrigins   []string `envconfig:"ALLOW_ORIGINS" default:"http://localhost:3000"`
	MaxUploadBytes int64    `envconfig:"MAX_UPLOAD_BYTES" default:"268435456"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`
}

// Load reads the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that would make the services misbehave.
func (c *Config) Validate() error {
	switch {
	case c.OracleTimeout <= 0:
		return fmt.Errorf("%s_ORACLE_TIMEOUT must be positive, got %s", Prefix, c.OracleTimeout)
	case c.CodecTimeout <= 0:
		return fmt.Errorf("%s_CODEC_TIMEOUT must be positive, got %s", Prefix, c.CodecTimeout)
	case c.SilenceGap <= 0:
		return fmt.Errorf("%s_SILENCE_GAP must be positive, got %s", Prefix, c.SilenceGap)
	case c.SilenceThresh >= 0:
		return fmt.Errorf("%s_SILENCE_THRESHOLD_DB must be below 0 dBFS, got %g", Prefix, c.SilenceThresh)
	case c.Workers < 0:
		return fmt.Errorf("%s_WORKERS must be >= 0, got %d", Prefix, c.Workers)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("%s_MAX_UPLOAD_BYTES must be positive, got %d", Prefix, c.MaxUploadBytes)
	}
	return nil
}

// WorkerCount resolves Workers, where 0 means one per CPU.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// OracleEnabled reports whether enough is configured to call the oracle.
func (c *Config) OracleEnabled() bool {
	return c.OracleEndpoint != "" && c.OracleAPIKey != ""
}

// NewLogger builds a zap logger from LogLevel and LogDevelopment.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%s_LOG_LEVEL: %w", Prefix, err)
	}
	zc := zap.NewProductionConfig()
	if c.LogDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
