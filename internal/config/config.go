// Package config provides configuration loading and structs for the ragbase server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override or supply secrets for the config file.
const (
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvOllamaBaseURL = "OLLAMA_BASE_URL"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Ollama     OllamaConfig     `yaml:"ollama"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// MaxUploadMB limits the size of PDF uploads.
	MaxUploadMB    int           `yaml:"max_upload_mb"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds the path of the chunk database.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// OpenAIConfig configures the embedding model and the chat model used for
// segmentation, classification, and signature extraction.
type OpenAIConfig struct {
	APIKey              string        `yaml:"-"`
	BaseURL             string        `yaml:"base_url"`
	ChatModel           string        `yaml:"chat_model"`
	EmbeddingModel      string        `yaml:"embedding_model"`
	EmbeddingDimensions int           `yaml:"embedding_dimensions"`
	Timeout             time.Duration `yaml:"timeout"`
}

// OllamaConfig configures the local model that composes final answers.
type OllamaConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// RetrievalConfig holds answer-time settings.
type RetrievalConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
}

// ClassifierConfig holds chunk classification settings.
type ClassifierConfig struct {
	// StrictTaxonomy maps model labels outside the taxonomy to "outros".
	// Defaults to true when unset.
	StrictTaxonomy *bool `yaml:"strict_taxonomy"`
}

// StrictOrDefault returns whether taxonomy validation is on; defaults to true when unset.
func (c *ClassifierConfig) StrictOrDefault() bool {
	if c.StrictTaxonomy != nil {
		return *c.StrictTaxonomy
	}
	return true
}

// WatchConfig holds inbox directory settings. Files dropped into a watched
// directory are ingested and then moved to its "processed" subdirectory, or to
// "failed" when ingestion fails.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, loads secrets from the
// environment (and a .env file next to the config or in the working directory),
// expands paths and applies defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	for _, envPath := range []string{filepath.Join(configDir, ".env"), ".env"} {
		if err := LoadDotEnv(envPath); err != nil {
			return nil, err
		}
	}
	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// LoadDotEnv loads variables from a .env file without overriding variables that
// are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	return nil
}

// ApplyEnv copies secrets and endpoint overrides from the environment into cfg.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvOpenAIAPIKey); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv(EnvOpenAIBaseURL); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv(EnvOllamaBaseURL); v != "" {
		cfg.Ollama.BaseURL = v
	}
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OpenAI API key not set: please set %s", EnvOpenAIAPIKey)
	}
	if c.Retrieval.DefaultTopK < 1 || c.Retrieval.DefaultTopK > 10 {
		return fmt.Errorf("retrieval.default_top_k must be between 1 and 10, got %d", c.Retrieval.DefaultTopK)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
