// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package compose turns retrieved memories into a final answer.
// Composers live in subpackages and register themselves by name.
package compose

import (
	"context"
	"sync"
	"time"

	"github.com/mnemo-dev/mnemo/internal/rank"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// Composer synthesizes an answer to a query from ranked matches.
// Implementations must tolerate an empty match slice.
type Composer interface {
	Compose(ctx context.Context, query string, matches []rank.Match) (string, error)
	Name() string
}

// Config selects and parameterizes a composer.
type Config struct {
	Provider string // "template" (default) or "anthropic"
	Model    string
	APIKey   string
	Endpoint string // optional base URL override
	// Timeout bounds each Compose call. 0 uses DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds a Compose call when no timeout is configured.
const DefaultTimeout = 60 * time.Second

// Factory creates a Composer from a Config.
type Factory func(cfg Config) (Composer, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterProvider registers a named composer. Composer packages call
// this from init(). Goroutine-safe.
func RegisterProvider(name string, fn Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = fn
}

// New constructs the configured composer, defaulting to "template".
func New(cfg Config) (Composer, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "template"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	factoriesMu.RLock()
	fn, ok := factories[provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, mnemoerr.Errorf(mnemoerr.CodeComposeProviderUnknown,
			"unknown composer: %q", provider)
	}

	return fn(cfg)
}
