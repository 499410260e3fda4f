// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"os"

	"github.com/mnemo-dev/mnemo/internal/compose"
	_ "github.com/mnemo-dev/mnemo/internal/compose/anthropic" // register anthropic composer
	_ "github.com/mnemo-dev/mnemo/internal/compose/template"  // register template composer
	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/embed"
	_ "github.com/mnemo-dev/mnemo/internal/embed/google" // register google provider
	_ "github.com/mnemo-dev/mnemo/internal/embed/openai" // register openai provider
	_ "github.com/mnemo-dev/mnemo/internal/embed/static" // register static provider
	"github.com/mnemo-dev/mnemo/internal/secrets"
	"github.com/mnemo-dev/mnemo/internal/server"
	"github.com/mnemo-dev/mnemo/internal/session"
	"github.com/mnemo-dev/mnemo/internal/store"
	_ "github.com/mnemo-dev/mnemo/internal/store/chromem" // register chromem backend
	_ "github.com/mnemo-dev/mnemo/internal/store/memory"  // register memory backend
	_ "github.com/mnemo-dev/mnemo/internal/store/sqlite"  // register sqlite backend
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// Engine holds all wired subsystems and manages their lifecycle.
type Engine struct {
	Store        store.VectorStore
	Embedder     embed.Embedder
	Composer     compose.Composer
	Orchestrator *session.Orchestrator
	Config       *config.Config
}

// Close releases the engine's resources.
func (e *Engine) Close() error {
	return e.Store.Close()
}

// WireEngine creates all subsystems from configuration and wires them
// together.
func WireEngine(cfg *config.Config) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	keyring := secrets.NewKeyringStore()

	// 1. Vector store.
	st, err := store.New(store.Config{
		Backend:    cfg.Storage.Backend,
		Collection: cfg.Storage.Collection,
		Dimensions: cfg.Storage.VectorDimensions,
	}, cfg.DataDir)
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeCLISetupFailure, "creating vector store: %w", err)
	}

	// 2. Embedding provider, with the API key resolved through the
	// keyring when the config does not carry one.
	embedKey, err := secrets.ResolveAPIKey(keyring, cfg.Embedding.APIKey,
		"embedding.api_key", embedKeyEnvVar(cfg.Embedding.Provider))
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	embedder, err := embed.New(embed.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     embedKey,
		Endpoint:   cfg.Embedding.Endpoint,
		Dimensions: cfg.Storage.VectorDimensions,
		Timeout:    cfg.Embedding.Timeout,
	})
	if err != nil {
		_ = st.Close()
		return nil, mnemoerr.Errorf(mnemoerr.CodeCLISetupFailure, "creating embedder: %w", err)
	}

	// 3. Answer composer.
	composeKey, err := secrets.ResolveAPIKey(keyring, cfg.Composer.APIKey,
		"composer.api_key", "ANTHROPIC_API_KEY")
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	composer, err := compose.New(compose.Config{
		Provider: cfg.Composer.Provider,
		Model:    cfg.Composer.Model,
		APIKey:   composeKey,
		Endpoint: cfg.Composer.Endpoint,
	})
	if err != nil {
		_ = st.Close()
		return nil, mnemoerr.Errorf(mnemoerr.CodeCLISetupFailure, "creating composer: %w", err)
	}

	// 4. Orchestrator.
	orch, err := session.New(session.Config{
		Embedder:      embedder,
		Store:         st,
		Composer:      composer,
		TopK:          cfg.Retrieval.TopK,
		MinConfidence: cfg.Retrieval.MinConfidence,
		MaxDistance:   cfg.Retrieval.MaxDistance,
		RecencyWeight: cfg.Retrieval.RecencyWeight,
		HalfLife:      cfg.Retrieval.HalfLife,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &Engine{
		Store:        st,
		Embedder:     embedder,
		Composer:     composer,
		Orchestrator: orch,
		Config:       cfg,
	}, nil
}

// Services builds the HTTP route dependencies from the wired engine.
func (e *Engine) Services() *server.Services {
	return &server.Services{
		Orchestrator: e.Orchestrator,
		Store:        e.Store,
		Embedder:     e.Embedder,
		Backend:      e.Config.Storage.Backend,
		Provider:     e.Config.Embedding.Provider,
		Version:      version,
	}
}

func embedKeyEnvVar(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}
