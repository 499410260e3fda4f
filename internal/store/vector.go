// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package store

import "context"

// VectorStore is the durable collection of embedding records plus
// nearest-neighbor search over it.
//
// All backends serialize writes and give every query a view containing at
// least all records committed before the query began (read-after-write for
// every caller, not just the writing session).
type VectorStore interface {
	// Insert validates the vector, assigns an id and timestamp, and
	// persists the record. The first insert into an empty collection
	// establishes the collection's dimension; later inserts with a
	// different length fail with a dimension-mismatch error. text may be
	// empty for records inserted from a pre-computed vector.
	Insert(ctx context.Context, vector []float32, text string, md Metadata) (*Record, error)

	// Get returns a record by id, or a not-found error.
	Get(ctx context.Context, id string) (*Record, error)

	// Query returns at most k results ordered by ascending cosine
	// distance with deterministic tie-breaks (see SortResults). An empty
	// collection or a filter matching nothing yields an empty slice, not
	// an error.
	Query(ctx context.Context, vector []float32, k int, opts QueryOpts) ([]QueryResult, error)

	// List returns up to limit records in insertion order. limit <= 0
	// means no limit.
	List(ctx context.Context, limit int) ([]*Record, error)

	// Dimensions reports the established vector dimension, or 0 for an
	// empty collection.
	Dimensions(ctx context.Context) (int, error)

	Close() error
}
