// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package openai provides the OpenAI embedding provider.
package openai

import (
	"context"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mnemo-dev/mnemo/internal/embed"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "text-embedding-3-small"

// defaultModelDimensions is the native output size of DefaultModel.
const defaultModelDimensions = 1536

func init() {
	embed.RegisterProvider("openai", func(cfg embed.Config) (embed.Embedder, error) {
		return New(cfg)
	})
}

// Compile-time interface check.
var _ embed.Embedder = (*Embedder)(nil)

// Embedder calls the OpenAI Embeddings API.
type Embedder struct {
	client     openaisdk.Client
	model      string
	dimensions int
	timeout    time.Duration
}

// New creates an OpenAI embedder. Returns an error if the API key is
// missing.
func New(cfg embed.Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, mnemoerr.New(mnemoerr.CodeConfigValidateInvalidValue,
			"openai embedder: missing api_key", mnemoerr.FieldProvider("openai"))
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	dims := cfg.Dimensions
	if dims <= 0 {
		dims = defaultModelDimensions
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = embed.DefaultTimeout
	}

	return &Embedder{
		client:     openaisdk.NewClient(opts...),
		model:      model,
		dimensions: dims,
		timeout:    timeout,
	}, nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := embed.ValidateBatch(texts); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openaisdk.EmbeddingModel(e.model),
	}
	if e.dimensions != defaultModelDimensions {
		params.Dimensions = openaisdk.Int(int64(e.dimensions))
	}

	res, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeEmbedUnavailable,
			"openai embeddings call failed", mnemoerr.FieldProvider("openai"))
	}

	if len(res.Data) != len(texts) {
		return nil, mnemoerr.Errorf(mnemoerr.CodeEmbedResponseInvalid,
			"openai returned %d embeddings for %d inputs", len(res.Data), len(texts))
	}

	// Place by index rather than trusting response order.
	out := make([][]float32, len(texts))
	for _, item := range res.Data {
		if item.Index < 0 || int(item.Index) >= len(texts) {
			return nil, mnemoerr.Errorf(mnemoerr.CodeEmbedResponseInvalid,
				"openai embedding index %d out of range", item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		for i, f := range item.Embedding {
			vec[i] = float32(f)
		}
		out[item.Index] = vec
	}

	for i, vec := range out {
		if vec == nil {
			return nil, mnemoerr.Errorf(mnemoerr.CodeEmbedResponseInvalid,
				"openai response missing embedding for input %d", i)
		}
	}

	return out, nil
}

func (e *Embedder) Dimensions() int { return e.dimensions }

func (e *Embedder) Model() string { return e.model }
