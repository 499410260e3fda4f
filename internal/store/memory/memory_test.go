// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mnemo-dev/mnemo/internal/store"
	"github.com/mnemo-dev/mnemo/internal/store/memory"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertThenQueryReflexivity(t *testing.T) {
	ctx := context.Background()
	s := memory.New(0)

	rec, err := s.Insert(ctx, []float32{0.3, 0.4, 0.5}, "hello", nil)
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	results, err := s.Query(ctx, []float32{0.3, 0.4, 0.5}, 1, store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, rec.ID, results[0].RecordID)
	assert.InDelta(t, 0, results[0].Distance, 1e-9)
}

func TestQueryOrderingScenario(t *testing.T) {
	// A=[1,0], B=[0,1], C=[0.9,0.1]; query [1,0] top_k=2 -> A then C.
	ctx := context.Background()
	s := memory.New(0)

	a, err := s.Insert(ctx, []float32{1, 0}, "A", nil)
	require.NoError(t, err)
	_, err = s.Insert(ctx, []float32{0, 1}, "B", nil)
	require.NoError(t, err)
	c, err := s.Insert(ctx, []float32{0.9, 0.1}, "C", nil)
	require.NoError(t, err)

	results, err := s.Query(ctx, []float32{1, 0}, 2, store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, a.ID, results[0].RecordID)
	assert.InDelta(t, 0, results[0].Distance, 1e-9)
	assert.Equal(t, c.ID, results[1].RecordID)
}

func TestQueryEmptyCollection(t *testing.T) {
	s := memory.New(0)

	results, err := s.Query(context.Background(), []float32{1, 0}, 5, store.QueryOpts{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryTopKExceedsAvailable(t *testing.T) {
	ctx := context.Background()
	s := memory.New(0)

	_, err := s.Insert(ctx, []float32{1, 0}, "only", nil)
	require.NoError(t, err)

	results, err := s.Query(ctx, []float32{1, 0}, 50, store.QueryOpts{})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestDimensionMismatchLeavesCollectionUnchanged(t *testing.T) {
	ctx := context.Background()
	s := memory.New(0)

	_, err := s.Insert(ctx, []float32{1, 0, 0}, "first", nil)
	require.NoError(t, err)

	_, err = s.Insert(ctx, []float32{1, 0}, "wrong dims", nil)
	require.Error(t, err)
	assert.True(t, mnemoerr.IsDimensionMismatch(err))

	recs, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	dims, err := s.Dimensions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dims)
}

func TestQueryDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := memory.New(0)

	_, err := s.Insert(ctx, []float32{1, 0, 0}, "", nil)
	require.NoError(t, err)

	_, err = s.Query(ctx, []float32{1, 0}, 1, store.QueryOpts{})
	require.Error(t, err)
	assert.True(t, mnemoerr.IsDimensionMismatch(err))
}

func TestInsertInvalidVectors(t *testing.T) {
	ctx := context.Background()
	s := memory.New(0)

	_, err := s.Insert(ctx, nil, "empty", nil)
	require.Error(t, err)
	assert.True(t, mnemoerr.IsInvalidInput(err))
}

func TestSessionFilterNoCrossLeakage(t *testing.T) {
	ctx := context.Background()
	s := memory.New(0)

	md1, err := store.MetadataFromAny(map[string]any{"session_id": "alpha"})
	require.NoError(t, err)
	md2, err := store.MetadataFromAny(map[string]any{"session_id": "beta"})
	require.NoError(t, err)

	r1, err := s.Insert(ctx, []float32{1, 0}, "mine", md1)
	require.NoError(t, err)
	_, err = s.Insert(ctx, []float32{1, 0}, "theirs", md2)
	require.NoError(t, err)

	results, err := s.Query(ctx, []float32{1, 0}, 10, store.QueryOpts{
		Filter: store.Filter{"session_id": store.StringValue("alpha")},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, r1.ID, results[0].RecordID)
}

func TestQueryExcludesIDs(t *testing.T) {
	ctx := context.Background()
	s := memory.New(0)

	r1, err := s.Insert(ctx, []float32{1, 0}, "self", nil)
	require.NoError(t, err)
	r2, err := s.Insert(ctx, []float32{0.9, 0.1}, "other", nil)
	require.NoError(t, err)

	results, err := s.Query(ctx, []float32{1, 0}, 10, store.QueryOpts{
		Exclude: []string{r1.ID},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, r2.ID, results[0].RecordID)
}

func TestQueryMinConfidenceAndMaxDistance(t *testing.T) {
	ctx := context.Background()
	s := memory.New(0)

	low, err := store.MetadataFromAny(map[string]any{"confidence": 0.2})
	require.NoError(t, err)
	high, err := store.MetadataFromAny(map[string]any{"confidence": 0.9})
	require.NoError(t, err)

	_, err = s.Insert(ctx, []float32{1, 0}, "low", low)
	require.NoError(t, err)
	hi, err := s.Insert(ctx, []float32{1, 0}, "high", high)
	require.NoError(t, err)
	_, err = s.Insert(ctx, []float32{0, 1}, "far high", high)
	require.NoError(t, err)

	results, err := s.Query(ctx, []float32{1, 0}, 10, store.QueryOpts{
		MinConfidence: 0.6,
		MaxDistance:   0.5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, hi.ID, results[0].RecordID)
}

func TestListInsertionOrderRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := memory.New(0)

	md, err := store.MetadataFromAny(map[string]any{"source": "test"})
	require.NoError(t, err)

	r1, err := s.Insert(ctx, []float32{1, 0}, "first", md)
	require.NoError(t, err)
	r2, err := s.Insert(ctx, []float32{0, 1}, "second", nil)
	require.NoError(t, err)

	recs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, r1.ID, recs[0].ID)
	assert.Equal(t, []float32{1, 0}, recs[0].Vector)
	assert.Equal(t, "first", recs[0].Text)
	assert.True(t, recs[0].Metadata["source"].Equal(store.StringValue("test")))
	assert.Equal(t, r2.ID, recs[1].ID)

	limited, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, r1.ID, limited[0].ID)
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	s := memory.New(0)

	rec, err := s.Insert(ctx, []float32{1, 0}, "find me", nil)
	require.NoError(t, err)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "find me", got.Text)

	_, err = s.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, mnemoerr.IsNotFound(err))
}

func TestTimestampsMonotonicUnderClockSkew(t *testing.T) {
	ctx := context.Background()
	s := memory.New(0)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(-time.Hour), base.Add(time.Second)}
	i := 0
	s.SetClock(func() time.Time {
		t := ticks[i%len(ticks)]
		i++
		return t
	})

	var stamps []time.Time
	for range 3 {
		rec, err := s.Insert(ctx, []float32{1, 0}, "", nil)
		require.NoError(t, err)
		stamps = append(stamps, rec.CreatedAt)
	}

	for j := 1; j < len(stamps); j++ {
		assert.False(t, stamps[j].Before(stamps[j-1]), "timestamps must not regress")
	}
}

func TestDeterministicOrderingForEqualDistances(t *testing.T) {
	ctx := context.Background()
	s := memory.New(0)

	// Two records at identical distance from the query.
	_, err := s.Insert(ctx, []float32{2, 0}, "older", nil)
	require.NoError(t, err)
	_, err = s.Insert(ctx, []float32{4, 0}, "newer", nil)
	require.NoError(t, err)

	first, err := s.Query(ctx, []float32{1, 0}, 2, store.QueryOpts{})
	require.NoError(t, err)

	for range 5 {
		again, err := s.Query(ctx, []float32{1, 0}, 2, store.QueryOpts{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	// Tie broken by insertion time.
	require.Len(t, first, 2)
	assert.Equal(t, "older", first[0].Document)
}

func TestConcurrentInsertsLoseNothing(t *testing.T) {
	ctx := context.Background()
	s := memory.New(0)

	const n = 64
	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			_, err := s.Insert(ctx, []float32{1, 0}, "w", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	recs, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recs, n)

	seen := map[string]struct{}{}
	for _, r := range recs {
		seen[r.ID] = struct{}{}
	}
	assert.Len(t, seen, n)
}

func TestFactoryConstructsMemoryBackend(t *testing.T) {
	vs, err := store.New(store.Config{Backend: "memory"}, t.TempDir())
	require.NoError(t, err)
	defer func() { _ = vs.Close() }()

	_, err = vs.Insert(context.Background(), []float32{1, 0}, "via factory", nil)
	require.NoError(t, err)
}

func TestFactoryRejectsUnknownBackend(t *testing.T) {
	_, err := store.New(store.Config{Backend: "etcd"}, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, mnemoerr.CodeStoreBackendUnsupported, mnemoerr.CodeOf(err))
}
