// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/zalando/go-keyring"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// indexKey is the keyring entry holding the JSON list of stored key
// names. go-keyring cannot enumerate keys natively, so Keys() reads this
// index instead.
const indexKey = Service + "::keys-index"

// KeyringStore implements Store using the OS keyring via
// zalando/go-keyring. On macOS it uses Keychain, on Linux secret-service
// (D-Bus), and on Windows the Credential Manager.
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a KeyringStore scoped to the Mnemo service.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: Service}
}

func (s *KeyringStore) Set(key, value string) error {
	if key == "" {
		return mnemoerr.New(mnemoerr.CodeSecretInvalidInput, "secret set: key must not be empty")
	}

	if err := keyring.Set(s.service, key, value); err != nil {
		return mnemoerr.Wrapf(err, mnemoerr.CodeSecretStoreFailure, "storing secret %s", key)
	}

	return s.addToIndex(key)
}

func (s *KeyringStore) Get(key string) (string, error) {
	if key == "" {
		return "", mnemoerr.New(mnemoerr.CodeSecretInvalidInput, "secret get: key must not be empty")
	}

	val, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", mnemoerr.Errorf(mnemoerr.CodeSecretNotFound, "secret %s not found", key)
		}
		return "", mnemoerr.Wrapf(err, mnemoerr.CodeSecretStoreFailure, "retrieving secret %s", key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(key string) error {
	if key == "" {
		return mnemoerr.New(mnemoerr.CodeSecretInvalidInput, "secret delete: key must not be empty")
	}

	if err := keyring.Delete(s.service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return mnemoerr.Errorf(mnemoerr.CodeSecretNotFound, "secret %s not found", key)
		}
		return mnemoerr.Wrapf(err, mnemoerr.CodeSecretDeleteFailure, "deleting secret %s", key)
	}

	return s.removeFromIndex(key)
}

func (s *KeyringStore) Keys() ([]string, error) {
	return s.loadIndex()
}

func (s *KeyringStore) loadIndex() ([]string, error) {
	raw, err := keyring.Get(s.service, indexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, mnemoerr.Wrapf(err, mnemoerr.CodeSecretListFailure, "loading key index")
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, mnemoerr.Wrapf(err, mnemoerr.CodeSecretListFailure, "decoding key index")
	}

	return keys, nil
}

func (s *KeyringStore) saveIndex(keys []string) error {
	if len(keys) == 0 {
		// Clean up the index entry when empty.
		if delErr := keyring.Delete(s.service, indexKey); delErr != nil {
			slog.Debug("failed to clean up empty key index", "error", delErr)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return mnemoerr.Wrapf(err, mnemoerr.CodeSecretListFailure, "encoding key index")
	}

	if err := keyring.Set(s.service, indexKey, string(data)); err != nil {
		return mnemoerr.Wrapf(err, mnemoerr.CodeSecretListFailure, "saving key index")
	}

	return nil
}

// addToIndex records a key in the index (idempotent).
func (s *KeyringStore) addToIndex(key string) error {
	keys, err := s.loadIndex()
	if err != nil {
		return err
	}

	for _, k := range keys {
		if k == key {
			return nil
		}
	}

	return s.saveIndex(append(keys, key))
}

func (s *KeyringStore) removeFromIndex(key string) error {
	keys, err := s.loadIndex()
	if err != nil {
		return err
	}

	filtered := keys[:0]
	for _, k := range keys {
		if k != key {
			filtered = append(filtered, k)
		}
	}

	return s.saveIndex(filtered)
}
