package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ronaldod-hc/legendas-app/internal/subtitle"
)

// DefaultPath is read when --config is not given.
const DefaultPath = "legendas.yaml"

var ErrMissingAPIKey = errors.New("API key is required")

// Config represents the application configuration
type Config struct {
	Transcription TranscriptionConfig `yaml:"transcription"`
	Segmentation  SegmentationConfig  `yaml:"segmentation"`
	Server        ServerConfig        `yaml:"server"`
	FFmpeg        FFmpegConfig        `yaml:"ffmpeg"`
	Translation   TranslationConfig   `yaml:"translation"`
	Style         subtitle.Style      `yaml:"style"`
}

type TranscriptionConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	// how often an upload still being processed is checked
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxPollAttempts int           `yaml:"max_poll_attempts"`
	// remote /transcribe service, used by the remote provider
	Endpoint string `yaml:"endpoint"`
}

type SegmentationConfig struct {
	MaxChars int `yaml:"max_chars"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxSessions    int      `yaml:"max_sessions"`
	UploadDir      string   `yaml:"upload_dir"`
	MaxUploadMB    int64    `yaml:"max_upload_mb"`
	FontsDir       string   `yaml:"fonts_dir"`
}

// FFmpegConfig overrides the binaries found on PATH.
type FFmpegConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
}

type TranslationConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Transcription: TranscriptionConfig{
			Provider:        "gemini",
			PollInterval:    5 * time.Second,
			MaxPollAttempts: 60,
		},
		Segmentation: SegmentationConfig{
			MaxChars: subtitle.DefaultMaxChars,
		},
		Server: ServerConfig{
			Addr:           ":3001",
			AllowedOrigins: []string{"http://localhost:5173"},
			MaxSessions:    32,
			UploadDir:      filepath.Join(os.TempDir(), "legendas-uploads"),
			MaxUploadMB:    500,
		},
		Translation: TranslationConfig{
			Provider:    "gemini",
			BatchSize:   50,
			Concurrency: 3,
		},
		Style: subtitle.DefaultStyle(),
	}
}

// Load reads config from file, returns default if not exists
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes config to file
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Transcription.PollInterval < 0 {
		return fmt.Errorf("transcription.poll_interval must not be negative")
	}
	if c.Transcription.MaxPollAttempts < 0 {
		return fmt.Errorf("transcription.max_poll_attempts must not be negative")
	}
	if c.Segmentation.MaxChars < 0 {
		return fmt.Errorf("segmentation.max_chars must not be negative")
	}
	if c.Server.MaxSessions < 0 || c.Server.MaxUploadMB < 0 {
		return fmt.Errorf("server limits must not be negative")
	}
	return c.Style.Validate()
}

// LoadEnv reads KEY=value pairs from the given .env files, or ./.env when
// none are given. Variables already set win. A missing default file is
// not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); os.IsNotExist(err) {
			return nil
		}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// environment variable holding each provider's key
var apiKeyEnv = map[string]string{
	"gemini":    "GEMINI_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// APIKeyEnv names the variable read for provider, empty when the provider
// needs no key.
func APIKeyEnv(provider string) string {
	return apiKeyEnv[provider]
}

// ResolveAPIKey prefers an explicit flag value over the environment.
func ResolveAPIKey(provider, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	env := APIKeyEnv(provider)
	if env == "" {
		return "", nil
	}
	if key := os.Getenv(env); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w: use --api-key or set %s", ErrMissingAPIKey, env)
}
