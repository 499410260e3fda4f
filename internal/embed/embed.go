// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package embed defines the embedding gateway boundary: cleaned text in,
// fixed-length vectors out. Providers live in subpackages and register
// themselves by name.
package embed

import (
	"context"
	"sync"
	"time"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// Embedder turns text into fixed-length numeric vectors.
//
// EmbedBatch returns exactly one vector per input text, in input order,
// all of the provider's fixed dimension. Implementations must never drop
// or reorder inputs; any transport or model failure surfaces as an
// embed.*.unavailable error.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

// Config selects and parameterizes a provider.
type Config struct {
	Provider string // "static" (default), "openai", or "google"
	Model    string
	APIKey   string
	Endpoint string // optional base URL override
	// Dimensions requests a specific output dimension from providers that
	// support it; 0 uses the model default.
	Dimensions int
	// Timeout bounds each EmbedBatch call. 0 uses DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds an EmbedBatch call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Factory creates an Embedder from a Config.
type Factory func(cfg Config) (Embedder, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterProvider registers a named embedding provider. Provider packages
// call this from init(). Goroutine-safe.
func RegisterProvider(name string, fn Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = fn
}

// New constructs the configured provider, defaulting to "static".
// The returned Embedder is built once and safe for concurrent use; callers
// hold one handle for the process lifetime rather than re-constructing per
// request.
func New(cfg Config) (Embedder, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "static"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	factoriesMu.RLock()
	fn, ok := factories[provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, mnemoerr.Errorf(mnemoerr.CodeEmbedProviderUnknown,
			"unknown embedding provider: %q", provider)
	}

	return fn(cfg)
}

// ValidateBatch rejects empty batches and empty texts before any network
// call.
func ValidateBatch(texts []string) error {
	if len(texts) == 0 {
		return mnemoerr.New(mnemoerr.CodeInputInvalid, "embed batch must not be empty")
	}
	for i, t := range texts {
		if t == "" {
			return mnemoerr.Errorf(mnemoerr.CodeInputInvalid, "embed batch text %d is empty", i)
		}
	}
	return nil
}
