// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package secrets keeps API keys out of config files. The default store
// is the OS keyring under one fixed service name; config values may
// reference stored secrets with keyring:// URIs.
package secrets

// Service is the keyring service name all Mnemo secrets live under.
const Service = "mnemo"

// Store provides secure secret storage operations. Implementations may
// use OS keyrings, encrypted files, or other backends. Keys are dotted
// config paths, e.g. "embedding.api_key".
type Store interface {
	// Set saves a secret value under the given key.
	Set(key, value string) error

	// Get fetches the secret value for the given key. Returns an error
	// carrying CodeSecretNotFound if the key does not exist.
	Get(key string) (string, error)

	// Delete removes the secret for the given key. Returns an error
	// carrying CodeSecretNotFound if the key does not exist.
	Delete(key string) error

	// Keys returns all key names in the store.
	Keys() ([]string, error)
}
