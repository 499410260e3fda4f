// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package store

// Config controls which backend the store factory uses.
type Config struct {
	Backend    string // "sqlite" (default), "chromem", or "memory"
	Collection string // collection name; empty uses "memories"
	// Dimensions pins the expected vector dimension. 0 lets the first
	// insert establish it.
	Dimensions int
}
