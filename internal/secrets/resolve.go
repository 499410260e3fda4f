// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package secrets

import (
	"os"
	"strings"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

const keyringScheme = "keyring://"

// IsKeyringRef reports whether value uses the keyring:// reference
// scheme.
func IsKeyringRef(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringRef extracts the secret key from a keyring://key reference.
func ParseKeyringRef(ref string) (string, error) {
	if !IsKeyringRef(ref) {
		return "", mnemoerr.Errorf(mnemoerr.CodeSecretInvalidInput, "not a keyring reference: %q", ref)
	}

	key := strings.TrimPrefix(ref, keyringScheme)
	if key == "" {
		return "", mnemoerr.Errorf(mnemoerr.CodeSecretInvalidInput,
			"invalid keyring reference %q: expected keyring://key", ref)
	}

	return key, nil
}

// ResolveAPIKey resolves a credential for a config slot. Resolution
// order:
//
//  1. a keyring:// reference in the config value resolves through store
//  2. any other non-empty config value is used literally
//  3. an empty value falls back to the keyring under defaultKey
//  4. finally the named environment variable
//
// An empty return with nil error means no credential is configured
// anywhere; providers that require one reject that at construction.
func ResolveAPIKey(store Store, configValue, defaultKey, envVar string) (string, error) {
	if IsKeyringRef(configValue) {
		key, err := ParseKeyringRef(configValue)
		if err != nil {
			return "", err
		}
		val, err := store.Get(key)
		if err != nil {
			return "", mnemoerr.Wrapf(err, mnemoerr.CodeSecretResolveFailure,
				"resolving keyring reference %q", configValue)
		}
		return val, nil
	}

	if configValue != "" {
		return configValue, nil
	}

	if val, err := store.Get(defaultKey); err == nil && val != "" {
		return val, nil
	} else if err != nil && !mnemoerr.HasCode(err, mnemoerr.CodeSecretNotFound) {
		return "", err
	}

	return os.Getenv(envVar), nil
}
