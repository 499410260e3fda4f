// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package store

import (
	"sync"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "memories"

// Factory creates a VectorStore rooted at dataPath for a named backend.
type Factory func(dataPath string, cfg Config) (VectorStore, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend. Backend
// packages call this from init(). Goroutine-safe.
func RegisterBackend(name string, fn Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = fn
}

// New creates a VectorStore for the configured backend, defaulting to
// "sqlite".
func New(cfg Config, dataPath string) (VectorStore, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "sqlite"
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	factoriesMu.RLock()
	fn, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, mnemoerr.Errorf(mnemoerr.CodeStoreBackendUnsupported,
			"unsupported storage backend: %q", backend)
	}

	return fn(dataPath, cfg)
}
