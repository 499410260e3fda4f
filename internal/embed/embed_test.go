// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package embed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-dev/mnemo/internal/embed"
	_ "github.com/mnemo-dev/mnemo/internal/embed/static"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

func TestNewDefaultsToStatic(t *testing.T) {
	e, err := embed.New(embed.Config{})
	require.NoError(t, err)
	assert.Equal(t, "static-fnv", e.Model())
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := embed.New(embed.Config{Provider: "does-not-exist"})
	require.Error(t, err)
	assert.Equal(t, mnemoerr.CodeEmbedProviderUnknown, mnemoerr.CodeOf(err))
}

func TestRegisterProviderOverride(t *testing.T) {
	embed.RegisterProvider("static-test-alias", func(cfg embed.Config) (embed.Embedder, error) {
		return embed.New(embed.Config{Provider: "static", Dimensions: cfg.Dimensions})
	})

	e, err := embed.New(embed.Config{Provider: "static-test-alias", Dimensions: 8})
	require.NoError(t, err)
	assert.Equal(t, 8, e.Dimensions())
}

func TestValidateBatch(t *testing.T) {
	require.NoError(t, embed.ValidateBatch([]string{"hello"}))

	err := embed.ValidateBatch(nil)
	require.Error(t, err)
	assert.True(t, mnemoerr.IsInvalidInput(err))

	err = embed.ValidateBatch([]string{"ok", ""})
	require.Error(t, err)
	assert.True(t, mnemoerr.IsInvalidInput(err))
}

func TestEmbedBatchThroughRegistry(t *testing.T) {
	e, err := embed.New(embed.Config{Provider: "static", Dimensions: 16})
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 16)
	assert.NotEqual(t, vecs[0], vecs[1])
}
