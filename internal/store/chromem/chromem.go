// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package chromem provides a VectorStore backed by chromem-go, a pure Go
// embedded vector database. The backend is in-process and persistent: a
// cgo-free alternative to the sqlite backend, with the KNN math living in
// the library rather than in Mnemo. chromem persists documents itself;
// the ordering bookkeeping (insertion order, sequence counter, timestamp
// high-water mark) lives in a sidecar manifest next to the database.
package chromem

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	chromemgo "github.com/philippgille/chromem-go"

	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// Reserved metadata keys on the chromem document. Record metadata
// round-trips losslessly through metaKey; createdKey and seqKey carry the
// ordering fields.
const (
	metaKey    = "mnemo_meta_json"
	createdKey = "mnemo_created_at"
	seqKey     = "mnemo_seq"
)

func init() {
	store.RegisterBackend("chromem", func(dataPath string, cfg store.Config) (store.VectorStore, error) {
		return New(dataPath, cfg)
	})
}

// Compile-time interface check.
var _ store.VectorStore = (*Store)(nil)

// Store implements store.VectorStore on a chromem-go collection.
type Store struct {
	mu           sync.RWMutex
	col          *chromemgo.Collection
	order        []string // insertion order of record ids
	dimensions   int
	lastStamp    time.Time
	nextSeq      int64
	manifestPath string // empty for in-memory stores
	now          func() time.Time
}

// manifest carries the bookkeeping chromem does not store for us. It is
// rewritten after every insert and read back on open.
type manifest struct {
	Dimensions  int      `json:"dimensions"`
	NextSeq     int64    `json:"next_seq"`
	LastStampNS int64    `json:"last_stamp_ns"`
	Order       []string `json:"order"`
}

// New creates a chromem-backed store for the configured collection. A
// non-empty dataPath opens (or creates) a persistent database under
// dataPath/chromem, restoring records across restarts; an empty dataPath
// keeps everything in memory.
func New(dataPath string, cfg store.Config) (*Store, error) {
	name := cfg.Collection
	if name == "" {
		name = store.DefaultCollection
	}

	var (
		db           *chromemgo.DB
		manifestPath string
	)
	if dataPath == "" {
		db = chromemgo.NewDB()
	} else {
		dir := filepath.Join(dataPath, "chromem")
		var err error
		db, err = chromemgo.NewPersistentDB(dir, false)
		if err != nil {
			return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "opening chromem database")
		}
		manifestPath = filepath.Join(dir, name+".manifest.json")
	}

	// Embeddings are always supplied by the caller; chromem must never
	// reach for its default embedding func.
	col, err := db.GetOrCreateCollection(name, nil, func(_ context.Context, _ string) ([]float32, error) {
		return nil, mnemoerr.New(mnemoerr.CodeEmbedProviderUnknown, "chromem backend does not embed")
	})
	if err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "creating chromem collection")
	}

	s := &Store{
		col:          col,
		dimensions:   cfg.Dimensions,
		manifestPath: manifestPath,
		now:          time.Now,
	}
	if err := s.loadManifest(); err != nil {
		return nil, err
	}
	return s, nil
}

// loadManifest restores ordering state from the sidecar file. A missing
// file is fine for a fresh collection; a non-empty collection without its
// manifest cannot reconstruct insertion order and is refused.
func (s *Store) loadManifest() error {
	if s.manifestPath == "" {
		return nil
	}

	data, err := os.ReadFile(s.manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			if s.col.Count() > 0 {
				return mnemoerr.New(mnemoerr.CodeStoreUnavailable,
					"chromem manifest missing for non-empty collection")
			}
			return nil
		}
		return mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "reading chromem manifest")
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "parsing chromem manifest")
	}

	if m.Dimensions != 0 {
		if err := store.CheckDimension(s.dimensions, m.Dimensions); err != nil {
			return err
		}
		s.dimensions = m.Dimensions
	}
	s.nextSeq = m.NextSeq
	s.lastStamp = time.Unix(0, m.LastStampNS).UTC()
	s.order = m.Order
	return nil
}

// saveManifest writes the bookkeeping atomically. Caller holds the write
// lock.
func (s *Store) saveManifest() error {
	if s.manifestPath == "" {
		return nil
	}

	m := manifest{
		Dimensions:  s.dimensions,
		NextSeq:     s.nextSeq,
		LastStampNS: s.lastStamp.UnixNano(),
		Order:       s.order,
	}
	data, err := json.Marshal(m)
	if err != nil {
		return mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "encoding chromem manifest")
	}

	tmp := s.manifestPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "writing chromem manifest")
	}
	if err := os.Rename(tmp, s.manifestPath); err != nil {
		return mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "committing chromem manifest")
	}
	return nil
}

// SetClock overrides the time source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Insert(ctx context.Context, vector []float32, text string, md store.Metadata) (*store.Record, error) {
	if err := store.ValidateVector(vector); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := store.CheckDimension(s.dimensions, len(vector)); err != nil {
		return nil, err
	}

	metaJSON := []byte("{}")
	if len(md) > 0 {
		var err error
		metaJSON, err = json.Marshal(md)
		if err != nil {
			return nil, mnemoerr.Wrap(err, mnemoerr.CodeInputInvalid, "marshalling metadata")
		}
	}

	stamp := s.now().UTC()
	if stamp.Before(s.lastStamp) {
		stamp = s.lastStamp
	}

	id := uuid.New().String()
	seq := s.nextSeq

	vec := make([]float32, len(vector))
	copy(vec, vector)

	doc := chromemgo.Document{
		ID:        id,
		Content:   text,
		Embedding: vec,
		Metadata: map[string]string{
			metaKey:    string(metaJSON),
			createdKey: strconv.FormatInt(stamp.UnixNano(), 10),
			seqKey:     strconv.FormatInt(seq, 10),
		},
	}

	if err := s.col.AddDocument(ctx, doc); err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "adding chromem document")
	}

	s.order = append(s.order, id)
	s.nextSeq++
	s.lastStamp = stamp
	if s.dimensions == 0 {
		s.dimensions = len(vector)
	}
	if err := s.saveManifest(); err != nil {
		return nil, err
	}

	return &store.Record{
		ID:        id,
		Vector:    vec,
		Text:      text,
		Metadata:  md.Clone(),
		CreatedAt: stamp,
		Seq:       seq,
	}, nil
}

func (s *Store) Get(ctx context.Context, id string) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.col.GetByID(ctx, id)
	if err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreRecordNotFound,
			"record not found", mnemoerr.FieldRecordID(id))
	}
	return docToRecord(doc)
}

func (s *Store) Query(ctx context.Context, vector []float32, k int, opts store.QueryOpts) ([]store.QueryResult, error) {
	if err := store.ValidateVector(vector); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, mnemoerr.New(mnemoerr.CodeInputInvalid, "top_k must be at least 1")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.col.Count()
	if total == 0 {
		return []store.QueryResult{}, nil
	}
	if err := store.CheckDimension(s.dimensions, len(vector)); err != nil {
		return nil, err
	}

	// Fetch every candidate and filter here: chromem's where clause only
	// matches strings, and truncating before the metadata filter would
	// under-fill the result set.
	raw, err := s.col.QueryEmbedding(ctx, vector, total, nil, nil)
	if err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "querying chromem collection")
	}

	excluded := make(map[string]struct{}, len(opts.Exclude))
	for _, id := range opts.Exclude {
		excluded[id] = struct{}{}
	}

	results := make([]store.QueryResult, 0, len(raw))
	for _, res := range raw {
		if _, skip := excluded[res.ID]; skip {
			continue
		}

		md, createdAt, seq, err := decodeDocMeta(res.Metadata)
		if err != nil {
			return nil, err
		}

		if !opts.Filter.Matches(md) {
			continue
		}
		if opts.MinConfidence > 0 && md.Confidence() < opts.MinConfidence {
			continue
		}

		d := 1 - float64(res.Similarity)
		if d < 0 {
			d = 0
		}
		if opts.MaxDistance > 0 && d > opts.MaxDistance {
			continue
		}

		results = append(results, store.QueryResult{
			RecordID:  res.ID,
			Distance:  d,
			Metadata:  md,
			Document:  res.Content,
			CreatedAt: createdAt,
			Seq:       seq,
		})
	}

	store.SortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.order)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]*store.Record, 0, n)
	for _, id := range s.order[:n] {
		doc, err := s.col.GetByID(ctx, id)
		if err != nil {
			return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreDatabaseFailure,
				"reading chromem document", mnemoerr.FieldRecordID(id))
		}
		rec, err := docToRecord(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) Dimensions(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions, nil
}

func (s *Store) Close() error {
	return nil
}

func docToRecord(doc chromemgo.Document) (*store.Record, error) {
	md, createdAt, seq, err := decodeDocMeta(doc.Metadata)
	if err != nil {
		return nil, err
	}
	return &store.Record{
		ID:        doc.ID,
		Vector:    doc.Embedding,
		Text:      doc.Content,
		Metadata:  md,
		CreatedAt: createdAt,
		Seq:       seq,
	}, nil
}

func decodeDocMeta(raw map[string]string) (store.Metadata, time.Time, int64, error) {
	var md store.Metadata
	if j := raw[metaKey]; j != "" {
		if err := json.Unmarshal([]byte(j), &md); err != nil {
			return nil, time.Time{}, 0, mnemoerr.Wrap(err, mnemoerr.CodeStoreDatabaseFailure, "unmarshalling record metadata")
		}
	}

	ns, err := strconv.ParseInt(raw[createdKey], 10, 64)
	if err != nil {
		return nil, time.Time{}, 0, mnemoerr.Wrap(err, mnemoerr.CodeStoreDatabaseFailure, "parsing record timestamp")
	}

	seq, err := strconv.ParseInt(raw[seqKey], 10, 64)
	if err != nil {
		return nil, time.Time{}, 0, mnemoerr.Wrap(err, mnemoerr.CodeStoreDatabaseFailure, "parsing record seq")
	}

	return md, time.Unix(0, ns).UTC(), seq, nil
}
