// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package google provides the Gemini embedding provider.
package google

import (
	"context"
	"time"

	"google.golang.org/genai"

	"github.com/mnemo-dev/mnemo/internal/embed"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-embedding-001"

// defaultModelDimensions is the native output size of DefaultModel.
const defaultModelDimensions = 3072

func init() {
	embed.RegisterProvider("google", func(cfg embed.Config) (embed.Embedder, error) {
		return New(cfg)
	})
}

// Compile-time interface check.
var _ embed.Embedder = (*Embedder)(nil)

// Embedder calls the Gemini embedContent API.
type Embedder struct {
	client     *genai.Client
	model      string
	dimensions int
	timeout    time.Duration
}

// New creates a Gemini embedder. Returns an error if the API key is
// missing.
func New(cfg embed.Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, mnemoerr.New(mnemoerr.CodeConfigValidateInvalidValue,
			"google embedder: missing api_key", mnemoerr.FieldProvider("google"))
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeEmbedUnavailable,
			"creating gemini client", mnemoerr.FieldProvider("google"))
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
		client:     client,
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

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	config := &genai.EmbedContentConfig{}
	if e.dimensions != defaultModelDimensions {
		config.OutputDimensionality = genai.Ptr(int32(e.dimensions))
	}

	res, err := e.client.Models.EmbedContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeEmbedUnavailable,
			"gemini embedContent call failed", mnemoerr.FieldProvider("google"))
	}

	if len(res.Embeddings) != len(texts) {
		return nil, mnemoerr.Errorf(mnemoerr.CodeEmbedResponseInvalid,
			"gemini returned %d embeddings for %d inputs", len(res.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, mnemoerr.Errorf(mnemoerr.CodeEmbedResponseInvalid,
				"gemini response missing embedding for input %d", i)
		}
		out[i] = emb.Values
	}

	return out, nil
}

func (e *Embedder) Dimensions() int { return e.dimensions }

func (e *Embedder) Model() string { return e.model }
