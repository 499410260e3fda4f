// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package secrets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/mnemo-dev/mnemo/internal/secrets"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

func init() {
	// Use the mock keyring for all tests so they don't touch the real OS keyring.
	keyring.MockInit()
}

func TestKeyringStore_SetAndGet(t *testing.T) {
	ks := secrets.NewKeyringStore()

	require.NoError(t, ks.Set("embedding.api_key", "sk-secret-123"))

	val, err := ks.Get("embedding.api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-secret-123", val)
}

func TestKeyringStore_GetNotFound(t *testing.T) {
	ks := secrets.NewKeyringStore()

	_, err := ks.Get("never.stored")
	require.Error(t, err)
	assert.True(t, mnemoerr.HasCode(err, mnemoerr.CodeSecretNotFound), "expected CodeSecretNotFound, got: %v", err)
}

func TestKeyringStore_Delete(t *testing.T) {
	ks := secrets.NewKeyringStore()

	require.NoError(t, ks.Set("temp.key", "temp-value"))
	require.NoError(t, ks.Delete("temp.key"))

	_, err := ks.Get("temp.key")
	require.Error(t, err)
	assert.True(t, mnemoerr.HasCode(err, mnemoerr.CodeSecretNotFound))
}

func TestKeyringStore_DeleteNotFound(t *testing.T) {
	ks := secrets.NewKeyringStore()

	err := ks.Delete("ghost.key")
	require.Error(t, err)
	assert.True(t, mnemoerr.HasCode(err, mnemoerr.CodeSecretNotFound))
}

func TestKeyringStore_EmptyKeyRejected(t *testing.T) {
	ks := secrets.NewKeyringStore()

	assert.Error(t, ks.Set("", "v"))
	_, err := ks.Get("")
	assert.Error(t, err)
	assert.Error(t, ks.Delete(""))
}

func TestKeyringStore_KeysIndex(t *testing.T) {
	ks := secrets.NewKeyringStore()

	require.NoError(t, ks.Set("index.one", "1"))
	require.NoError(t, ks.Set("index.two", "2"))
	// Setting twice must not duplicate the index entry.
	require.NoError(t, ks.Set("index.one", "1b"))

	keys, err := ks.Keys()
	require.NoError(t, err)
	assert.Contains(t, keys, "index.one")
	assert.Contains(t, keys, "index.two")
	assert.Equal(t, 1, count(keys, "index.one"))

	require.NoError(t, ks.Delete("index.one"))
	keys, err = ks.Keys()
	require.NoError(t, err)
	assert.NotContains(t, keys, "index.one")
}

func count(keys []string, want string) int {
	n := 0
	for _, k := range keys {
		if k == want {
			n++
		}
	}
	return n
}
