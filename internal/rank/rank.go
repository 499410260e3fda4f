// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package rank converts raw nearest-neighbor results into scored matches.
// Ranking is a pure function of its inputs: no clock, no store, no I/O.
package rank

import (
	"math"
	"sort"
	"time"

	"github.com/mnemo-dev/mnemo/internal/store"
)

// Match is a retrieved record with a relevance score.
//
// Score is a monotone transform of distance: score = 1 / (1 + distance),
// so score 1.0 means an exact match and scores decay toward 0 as distance
// grows. When a recency boost is enabled the combined score also rewards
// newer records.
type Match struct {
	RecordID  string         `json:"record_id"`
	Document  string         `json:"document,omitempty"`
	Metadata  store.Metadata `json:"metadata,omitempty"`
	Distance  float64        `json:"distance"`
	Score     float64        `json:"score"`
	CreatedAt time.Time      `json:"created_at"`
}

// Options tunes ranking. The zero value ranks by similarity alone.
type Options struct {
	// RecencyWeight blends a freshness term into the score: 0 disables
	// the boost, 1 weights freshness as heavily as similarity.
	RecencyWeight float64
	// HalfLife is the age at which the freshness term has decayed to
	// one half. Required when RecencyWeight > 0.
	HalfLife time.Duration
	// Now anchors age computation. Zero means the boost sees every
	// record as maximally fresh, so callers enabling the boost supply it.
	Now time.Time
}

func (o Options) recencyEnabled() bool {
	return o.RecencyWeight > 0 && o.HalfLife > 0
}

// Rank scores query results. The output has the same cardinality as the
// input. Without a recency boost the store's ordering is preserved
// exactly; with a boost enabled, matches re-sort by combined score
// descending, ties broken by the original order.
func Rank(results []store.QueryResult, opts Options) []Match {
	matches := make([]Match, len(results))
	for i, r := range results {
		m := Match{
			RecordID:  r.RecordID,
			Document:  r.Document,
			Metadata:  r.Metadata,
			Distance:  r.Distance,
			Score:     Score(r.Distance),
			CreatedAt: r.CreatedAt,
		}
		if opts.recencyEnabled() {
			m.Score = combine(m.Score, freshness(opts, r.CreatedAt), opts.RecencyWeight)
		}
		matches[i] = m
	}

	if opts.recencyEnabled() {
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Score > matches[j].Score
		})
	}
	return matches
}

// Score maps a cosine distance to a similarity score in (0, 1].
func Score(distance float64) float64 {
	if math.IsNaN(distance) || distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}

// freshness is exponential decay of age with the configured half-life,
// 1.0 for a record created at or after Now.
func freshness(opts Options, createdAt time.Time) float64 {
	age := opts.Now.Sub(createdAt)
	if age <= 0 {
		return 1
	}
	return math.Exp2(-float64(age) / float64(opts.HalfLife))
}

// combine blends similarity and freshness by normalized weights, keeping
// the result in (0, 1].
func combine(similarity, fresh, weight float64) float64 {
	if weight > 1 {
		weight = 1
	}
	return similarity*(1-weight) + fresh*weight
}
