// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package static provides a deterministic, offline embedding provider.
// Vectors are hash-seeded unit vectors: identical text always embeds to
// the identical vector, and distinct texts almost surely differ. Useful
// for development and tests; the geometry carries no semantics.
package static

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/mnemo-dev/mnemo/internal/embed"
)

// DefaultDimensions matches all-MiniLM-L6-v2, the smallest common real
// embedding size.
const DefaultDimensions = 384

func init() {
	embed.RegisterProvider("static", func(cfg embed.Config) (embed.Embedder, error) {
		dims := cfg.Dimensions
		if dims <= 0 {
			dims = DefaultDimensions
		}
		return New(dims), nil
	})
}

// Compile-time interface check.
var _ embed.Embedder = (*Embedder)(nil)

// Embedder generates deterministic hash-seeded embeddings.
type Embedder struct {
	dimensions int
}

// New creates a static embedder with the given output dimension.
func New(dimensions int) *Embedder {
	return &Embedder{dimensions: dimensions}
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := embed.ValidateBatch(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *Embedder) Dimensions() int { return e.dimensions }

func (e *Embedder) Model() string { return "static-fnv" }

func (e *Embedder) embed(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.dimensions)
	for i := range vec {
		// LCG stream seeded by the text hash.
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}

	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
