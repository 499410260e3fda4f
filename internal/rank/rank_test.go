// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package rank_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-dev/mnemo/internal/rank"
	"github.com/mnemo-dev/mnemo/internal/store"
)

func TestScoreTransform(t *testing.T) {
	assert.Equal(t, 1.0, rank.Score(0))
	assert.Equal(t, 0.5, rank.Score(1))
	assert.InDelta(t, 1.0/3.0, rank.Score(2), 1e-12)
	// Negative and NaN distances clamp to an exact match rather than
	// producing scores above 1.
	assert.Equal(t, 1.0, rank.Score(-0.5))
}

func TestRankPreservesOrderAndCardinality(t *testing.T) {
	results := []store.QueryResult{
		{RecordID: "a", Distance: 0.1},
		{RecordID: "b", Distance: 0.4},
		{RecordID: "c", Distance: 0.4},
	}

	matches := rank.Rank(results, rank.Options{})
	require.Len(t, matches, 3)
	assert.Equal(t, "a", matches[0].RecordID)
	assert.Equal(t, "b", matches[1].RecordID)
	assert.Equal(t, "c", matches[2].RecordID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, matches[1].Score, matches[2].Score)
}

func TestRankEmpty(t *testing.T) {
	matches := rank.Rank(nil, rank.Options{})
	assert.Empty(t, matches)
}

func TestRankCarriesRecordFields(t *testing.T) {
	now := time.Now()
	results := []store.QueryResult{{
		RecordID:  "r1",
		Document:  "the doc",
		Metadata:  store.Metadata{"session_id": store.StringValue("s")},
		Distance:  0.25,
		CreatedAt: now,
	}}

	matches := rank.Rank(results, rank.Options{})
	require.Len(t, matches, 1)
	assert.Equal(t, "the doc", matches[0].Document)
	assert.Equal(t, now, matches[0].CreatedAt)
	assert.Equal(t, 0.25, matches[0].Distance)
	require.Contains(t, matches[0].Metadata, "session_id")
}

func TestRecencyBoostResorts(t *testing.T) {
	now := time.Now()
	results := []store.QueryResult{
		// Closer but a week old.
		{RecordID: "old", Distance: 0.1, CreatedAt: now.Add(-7 * 24 * time.Hour)},
		// Farther but fresh.
		{RecordID: "fresh", Distance: 0.3, CreatedAt: now},
	}

	plain := rank.Rank(results, rank.Options{})
	assert.Equal(t, "old", plain[0].RecordID)

	boosted := rank.Rank(results, rank.Options{
		RecencyWeight: 0.5,
		HalfLife:      time.Hour,
		Now:           now,
	})
	assert.Equal(t, "fresh", boosted[0].RecordID)
}

func TestRecencyBoostDisabledWithoutHalfLife(t *testing.T) {
	now := time.Now()
	results := []store.QueryResult{
		{RecordID: "old", Distance: 0.1, CreatedAt: now.Add(-time.Hour)},
		{RecordID: "fresh", Distance: 0.3, CreatedAt: now},
	}

	matches := rank.Rank(results, rank.Options{RecencyWeight: 0.5, Now: now})
	assert.Equal(t, "old", matches[0].RecordID)
	assert.Equal(t, rank.Score(0.1), matches[0].Score)
}

func TestRecencyTiesKeepOriginalOrder(t *testing.T) {
	now := time.Now()
	results := []store.QueryResult{
		{RecordID: "x", Distance: 0.2, CreatedAt: now},
		{RecordID: "y", Distance: 0.2, CreatedAt: now},
	}

	matches := rank.Rank(results, rank.Options{
		RecencyWeight: 0.3,
		HalfLife:      time.Minute,
		Now:           now,
	})
	assert.Equal(t, "x", matches[0].RecordID)
	assert.Equal(t, "y", matches[1].RecordID)
}
