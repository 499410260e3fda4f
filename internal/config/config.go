// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// Config is the top-level Mnemo configuration.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Composer  ComposerConfig  `mapstructure:"composer"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Server    ServerConfig    `mapstructure:"server"`
}

// StorageConfig selects the vector store backend and collection.
type StorageConfig struct {
	Backend    string `mapstructure:"backend"`
	Collection string `mapstructure:"collection"`
	// VectorDimensions pins the collection dimension up front; 0 lets
	// the first insert establish it.
	VectorDimensions int `mapstructure:"vector_dimensions"`
}

// EmbeddingConfig selects and parameterizes the embedding provider.
type EmbeddingConfig struct {
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ComposerConfig selects and parameterizes the answer composer.
type ComposerConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// RetrievalConfig tunes ranking and query thresholds.
type RetrievalConfig struct {
	TopK          int           `mapstructure:"top_k"`
	RecencyWeight float64       `mapstructure:"recency_weight"`
	HalfLife      time.Duration `mapstructure:"half_life"`
	MinConfidence float64       `mapstructure:"min_confidence"`
	MaxDistance   float64       `mapstructure:"max_distance"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DefaultListen is the loopback address the server binds by default.
const DefaultListen = "127.0.0.1:19530"

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix MNEMO_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.collection", "memories")
	v.SetDefault("storage.vector_dimensions", 0)
	v.SetDefault("embedding.provider", "static")
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("composer.provider", "template")
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.recency_weight", 0.0)
	v.SetDefault("retrieval.half_life", 0)
	v.SetDefault("retrieval.min_confidence", 0.0)
	v.SetDefault("retrieval.max_distance", 0.0)
	v.SetDefault("server.listen", DefaultListen)

	// Environment
	v.SetEnvPrefix("MNEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, mnemoerr.Errorf(mnemoerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns all
// validation errors found, collecting every issue rather than stopping
// at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateComposer()...)
	errs = append(errs, c.validateRetrieval()...)
	errs = append(errs, c.validateServer()...)

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "chromem": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, chromem, memory], got %q",
			c.Storage.Backend,
		))
	}

	if c.Storage.Collection == "" {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: storage.collection must not be empty"))
	}

	if c.Storage.VectorDimensions < 0 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: storage.vector_dimensions must not be negative, got %d",
			c.Storage.VectorDimensions,
		))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error

	validProviders := map[string]bool{"static": true, "openai": true, "google": true}
	if !validProviders[c.Embedding.Provider] {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: embedding.provider must be one of [static, openai, google], got %q",
			c.Embedding.Provider,
		))
	}

	if c.Embedding.Timeout < 0 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: embedding.timeout must not be negative, got %s",
			c.Embedding.Timeout,
		))
	}

	return errs
}

func (c *Config) validateComposer() []error {
	var errs []error

	validProviders := map[string]bool{"template": true, "anthropic": true}
	if !validProviders[c.Composer.Provider] {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: composer.provider must be one of [template, anthropic], got %q",
			c.Composer.Provider,
		))
	}

	return errs
}

func (c *Config) validateRetrieval() []error {
	var errs []error

	if c.Retrieval.TopK <= 0 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: retrieval.top_k must be greater than 0, got %d",
			c.Retrieval.TopK,
		))
	}

	if c.Retrieval.RecencyWeight < 0 || c.Retrieval.RecencyWeight > 1 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: retrieval.recency_weight must be between 0 and 1, got %g",
			c.Retrieval.RecencyWeight,
		))
	}

	if c.Retrieval.RecencyWeight > 0 && c.Retrieval.HalfLife <= 0 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: retrieval.half_life must be set when recency_weight is enabled"))
	}

	if c.Retrieval.MinConfidence < 0 || c.Retrieval.MinConfidence > 1 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: retrieval.min_confidence must be between 0 and 1, got %g",
			c.Retrieval.MinConfidence,
		))
	}

	if c.Retrieval.MaxDistance < 0 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: retrieval.max_distance must not be negative, got %g",
			c.Retrieval.MaxDistance,
		))
	}

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: server.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err,
		))
		return errs
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q",
			portStr,
		))
	} else if port < 1 || port > 65535 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d",
			port,
		))
	}

	return errs
}

// defaultDataDir returns ~/.local/share/mnemo, or a relative fallback
// when the home directory cannot be resolved.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mnemo-data"
	}
	return filepath.Join(home, ".local", "share", "mnemo")
}
