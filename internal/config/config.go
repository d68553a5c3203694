// Package config loads and persists the buildli configuration file.
//
// The file is TOML at <user config dir>/buildli/config.toml. A missing file
// is not an error; defaults apply. BUILDLI_CONFIG overrides the file
// location, BUILDLI_VECTOR_PATH overrides vector.path.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/haasonsaas/buildli/pkg/core/apperr"
)

const (
	// EnvConfigPath overrides the config file location
	EnvConfigPath = "BUILDLI_CONFIG"

	// EnvVectorPath overrides vector.path
	EnvVectorPath = "BUILDLI_VECTOR_PATH"
)

// Config is the root configuration
type Config struct {
	Paths     PathsConfig     `toml:"paths"`
	LLM       LLMConfig       `toml:"llm"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Vector    VectorConfig    `toml:"vector"`
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
}

// PathsConfig lists the source trees to index
type PathsConfig struct {
	IndexRoot []string `toml:"index_root"`
}

// LLMConfig selects the chat model used to answer queries
type LLMConfig struct {
	Provider    string  `toml:"provider"`
	Model       string  `toml:"model"`
	APIKey      string  `toml:"api_key,omitempty"`
	BaseURL     string  `toml:"base_url,omitempty"`
	Temperature float64 `toml:"temperature"`
}

// EmbeddingConfig selects the embedding model used for indexing and search
type EmbeddingConfig struct {
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	APIKey     string `toml:"api_key,omitempty"`
	BatchSize  int    `toml:"batch_size"`
	Dimensions int    `toml:"dimensions,omitempty"`
}

// VectorConfig selects and locates the vector store backend
type VectorConfig struct {
	Backend    string `toml:"backend"`
	Path       string `toml:"path"`
	Collection string `toml:"collection"`
}

// ServerConfig configures "buildli serve". The gRPC server listens on
// Port+1.
type ServerConfig struct {
	Host  string `toml:"host"`
	Port  int    `toml:"port"`
	Token string `toml:"token,omitempty"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			IndexRoot: []string{"."},
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			BatchSize: 100,
		},
		Vector: VectorConfig{
			Backend:    "sqlite",
			Path:       filepath.Join(defaultDir(), "index.db"),
			Collection: "buildli",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 9090,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Path returns the config file location
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return filepath.Join(defaultDir(), "config.toml")
}

func defaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "buildli")
}

// Load reads the config file, applying defaults, environment overrides and
// env: key resolution. A missing file yields the defaults.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads a specific config file
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, apperr.Wrap(err, "failed to read config file").
			WithCode(apperr.CodeConfig).
			WithOperation("config.Load")
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, apperr.Wrap(err, fmt.Sprintf("invalid TOML in %s", path)).
			WithCode(apperr.CodeConfig).
			WithOperation("config.Load")
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv resolves env: references and environment overrides
func applyEnv(cfg *Config) {
	cfg.LLM.APIKey = resolveSecret(cfg.LLM.APIKey)
	cfg.Embedding.APIKey = resolveSecret(cfg.Embedding.APIKey)
	cfg.Server.Token = resolveSecret(cfg.Server.Token)

	if p := os.Getenv(EnvVectorPath); p != "" {
		cfg.Vector.Path = p
	}
	cfg.Vector.Path = os.ExpandEnv(cfg.Vector.Path)

	for i, root := range cfg.Paths.IndexRoot {
		cfg.Paths.IndexRoot[i] = os.ExpandEnv(root)
	}
}

// resolveSecret resolves "env:VAR" values from the environment
func resolveSecret(value string) string {
	if name, ok := strings.CutPrefix(value, "env:"); ok {
		return os.Getenv(name)
	}
	return value
}

// Save writes cfg as TOML to the default config path, creating the
// directory as needed.
func Save(cfg *Config) error {
	return SaveFile(cfg, Path())
}

// SaveFile writes cfg as TOML to path
func SaveFile(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.Wrap(err, "failed to create config directory").
			WithCode(apperr.CodeConfig).
			WithOperation("config.Save")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return apperr.Wrap(err, "failed to encode config").
			WithCode(apperr.CodeConfig).
			WithOperation("config.Save")
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return apperr.Wrap(err, "failed to write config file").
			WithCode(apperr.CodeConfig).
			WithOperation("config.Save")
	}
	return nil
}

// Dump renders the effective configuration as TOML
func Dump(cfg *Config) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", apperr.Wrap(err, "failed to encode config").
			WithCode(apperr.CodeConfig)
	}
	return buf.String(), nil
}

// Set assigns a dotted key like "llm.model" or "server.port". Unknown keys
// are an error.
func Set(cfg *Config, key, value string) error {
	badValue := func(err error) error {
		return apperr.Wrap(err, fmt.Sprintf("invalid value %q for %s", value, key)).
			WithCode(apperr.CodeConfig).
			WithOperation("config.Set")
	}

	switch key {
	case "paths.index_root":
		parts := strings.Split(value, ",")
		roots := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				roots = append(roots, p)
			}
		}
		cfg.Paths.IndexRoot = roots
	case "llm.provider":
		cfg.LLM.Provider = value
	case "llm.model":
		cfg.LLM.Model = value
	case "llm.api_key":
		cfg.LLM.APIKey = value
	case "llm.base_url":
		cfg.LLM.BaseURL = value
	case "llm.temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return badValue(err)
		}
		cfg.LLM.Temperature = f
	case "embedding.provider":
		cfg.Embedding.Provider = value
	case "embedding.model":
		cfg.Embedding.Model = value
	case "embedding.api_key":
		cfg.Embedding.APIKey = value
	case "embedding.batch_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return badValue(err)
		}
		cfg.Embedding.BatchSize = n
	case "embedding.dimensions":
		n, err := strconv.Atoi(value)
		if err != nil {
			return badValue(err)
		}
		cfg.Embedding.Dimensions = n
	case "vector.backend":
		cfg.Vector.Backend = value
	case "vector.path":
		cfg.Vector.Path = value
	case "vector.collection":
		cfg.Vector.Collection = value
	case "server.host":
		cfg.Server.Host = value
	case "server.port":
		n, err := strconv.Atoi(value)
		if err != nil {
			return badValue(err)
		}
		cfg.Server.Port = n
	case "server.token":
		cfg.Server.Token = value
	case "log.level":
		cfg.Log.Level = value
	case "log.format":
		cfg.Log.Format = value
	default:
		return apperr.Newf("unknown config key %q", key).
			WithCode(apperr.CodeConfig).
			WithOperation("config.Set")
	}
	return nil
}
