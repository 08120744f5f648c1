package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/menta2k/vision-analyzer/pkg/apperror"
)

// DefaultSettingsFile is read from the working directory when no path is given
const DefaultSettingsFile = "appsettings.json"

// Supported vision backends
const (
	BackendAzure    = "azure"
	BackendGoogle   = "google"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// Environment variables that override the settings file
const (
	EnvEndpoint = "VISION_ENDPOINT"
	EnvKey      = "VISION_KEY"
	EnvBackend  = "VISION_BACKEND"
)

// Config holds the application configuration. OllamaModel names the model
// for both the ollama and llamacpp backends.
type Config struct {
	Endpoint              string `json:"CognitiveServicesEndpoint"`
	Key                   string `json:"CognitiveServiceKey"`
	Backend               string `json:"VisionBackend"`
	OllamaModel           string `json:"OllamaModel"`
	ReportFile            string `json:"ReportFile"`
	ObjectsFile           string `json:"ObjectsFile"`
	ThumbnailFile         string `json:"ThumbnailFile"`
	OutputDir             string `json:"OutputDir"`
	RequestTimeoutSeconds int    `json:"RequestTimeoutSeconds"`
}

// Default returns a configuration with default values and no credentials
func Default() *Config {
	return &Config{
		Backend:       BackendAzure,
		OllamaModel:   "llava",
		ReportFile:    "analyze.txt",
		ObjectsFile:   "objects.jpg",
		ThumbnailFile: "thumbnail.png",
		OutputDir:     ".",
	}
}

// Load reads the settings file, applies .env and environment overrides and
// validates the result. Every failure is a configuration error.
func Load(filename string) (*Config, error) {
	if filename == "" {
		filename = DefaultSettingsFile
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, apperror.Configuration("load .env", err)
	}

	cfg, err := LoadFromFile(filename)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, apperror.Configuration("validate settings", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, apperror.Configuration("read settings", fmt.Errorf("failed to read config file: %w", err))
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, apperror.Configuration("parse settings", fmt.Errorf("failed to parse config file %s: %w", filename, err))
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvEndpoint); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv(EnvKey); v != "" {
		c.Key = v
	}
	if v := os.Getenv(EnvBackend); v != "" {
		c.Backend = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("CognitiveServicesEndpoint is required")
	}

	if strings.TrimSpace(c.Key) == "" {
		return fmt.Errorf("CognitiveServiceKey is required")
	}

	switch c.Backend {
	case BackendAzure, BackendGoogle, BackendOllama, BackendLlamaCpp:
	default:
		return fmt.Errorf("unknown VisionBackend %q (use %s, %s, %s or %s)", c.Backend, BackendAzure, BackendGoogle, BackendOllama, BackendLlamaCpp)
	}

	if c.ReportFile == "" || c.ObjectsFile == "" || c.ThumbnailFile == "" {
		return fmt.Errorf("output file names cannot be empty")
	}

	if c.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("RequestTimeoutSeconds must not be negative")
	}

	return nil
}

// RequestTimeout returns the per-call timeout, 0 meaning none
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ReportPath returns the report location under the output directory
func (c *Config) ReportPath() string {
	return filepath.Join(c.OutputDir, c.ReportFile)
}

// ObjectsPath returns the annotated image location under the output directory
func (c *Config) ObjectsPath() string {
	return filepath.Join(c.OutputDir, c.ObjectsFile)
}

// ThumbnailPath returns the thumbnail location under the output directory
func (c *Config) ThumbnailPath() string {
	return filepath.Join(c.OutputDir, c.ThumbnailFile)
}
