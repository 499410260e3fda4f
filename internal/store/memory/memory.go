// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package memory provides an in-process VectorStore backed by a linear
// scan. It holds nothing on disk; intended for tests and ephemeral
// deployments.
package memory

import (
	"context"
	"time"

	"sync"

	"github.com/google/uuid"

	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

func init() {
	store.RegisterBackend("memory", func(_ string, cfg store.Config) (store.VectorStore, error) {
		return New(cfg.Dimensions), nil
	})
}

// Compile-time interface check.
var _ store.VectorStore = (*Store)(nil)

// Store implements store.VectorStore with an in-memory slice and map.
type Store struct {
	mu         sync.RWMutex
	byID       map[string]*store.Record
	order      []*store.Record // insertion order
	dimensions int
	lastStamp  time.Time
	nextSeq    int64
	now        func() time.Time
}

// New creates an empty in-memory store. dimensions may be 0 to let the
// first insert establish it.
func New(dimensions int) *Store {
	return &Store{
		byID:       map[string]*store.Record{},
		dimensions: dimensions,
		now:        time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Insert(ctx context.Context, vector []float32, text string, md store.Metadata) (*store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "insert cancelled")
	}
	if err := store.ValidateVector(vector); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := store.CheckDimension(s.dimensions, len(vector)); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	if _, exists := s.byID[id]; exists {
		return nil, mnemoerr.New(mnemoerr.CodeStoreInsertConflict,
			"duplicate record id", mnemoerr.FieldRecordID(id))
	}

	// Timestamps never move backwards across inserts, even if the wall
	// clock does.
	stamp := s.now().UTC()
	if stamp.Before(s.lastStamp) {
		stamp = s.lastStamp
	}
	s.lastStamp = stamp

	vec := make([]float32, len(vector))
	copy(vec, vector)

	rec := &store.Record{
		ID:        id,
		Vector:    vec,
		Text:      text,
		Metadata:  md.Clone(),
		CreatedAt: stamp,
		Seq:       s.nextSeq,
	}
	s.nextSeq++

	if s.dimensions == 0 {
		s.dimensions = len(vector)
	}

	s.byID[id] = rec
	s.order = append(s.order, rec)

	return cloneRecord(rec), nil
}

func (s *Store) Get(ctx context.Context, id string) (*store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "get cancelled")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, mnemoerr.New(mnemoerr.CodeStoreRecordNotFound,
			"record not found", mnemoerr.FieldRecordID(id))
	}
	return cloneRecord(rec), nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int, opts store.QueryOpts) ([]store.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "query cancelled")
	}
	if err := store.ValidateVector(vector); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, mnemoerr.New(mnemoerr.CodeInputInvalid, "top_k must be at least 1")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return []store.QueryResult{}, nil
	}
	if err := store.CheckDimension(s.dimensions, len(vector)); err != nil {
		return nil, err
	}

	excluded := make(map[string]struct{}, len(opts.Exclude))
	for _, id := range opts.Exclude {
		excluded[id] = struct{}{}
	}

	results := make([]store.QueryResult, 0, len(s.order))
	for _, rec := range s.order {
		if _, skip := excluded[rec.ID]; skip {
			continue
		}
		if !opts.Filter.Matches(rec.Metadata) {
			continue
		}
		if opts.MinConfidence > 0 && rec.Metadata.Confidence() < opts.MinConfidence {
			continue
		}
		d := store.CosineDistance(vector, rec.Vector)
		if opts.MaxDistance > 0 && d > opts.MaxDistance {
			continue
		}
		results = append(results, store.QueryResult{
			RecordID:  rec.ID,
			Distance:  d,
			Metadata:  rec.Metadata.Clone(),
			Document:  rec.Text,
			CreatedAt: rec.CreatedAt,
			Seq:       rec.Seq,
		})
	}

	store.SortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]*store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "list cancelled")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.order)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]*store.Record, 0, n)
	for _, rec := range s.order[:n] {
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

func (s *Store) Dimensions(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 && s.dimensions == 0 {
		return 0, nil
	}
	return s.dimensions, nil
}

func (s *Store) Close() error {
	return nil
}

func cloneRecord(rec *store.Record) *store.Record {
	vec := make([]float32, len(rec.Vector))
	copy(vec, rec.Vector)
	return &store.Record{
		ID:        rec.ID,
		Vector:    vec,
		Text:      rec.Text,
		Metadata:  rec.Metadata.Clone(),
		CreatedAt: rec.CreatedAt,
		Seq:       rec.Seq,
	}
}
