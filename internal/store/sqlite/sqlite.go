// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package sqlite provides the default durable VectorStore backend: a plain
// SQLite table with embeddings as float32 blobs, scanned with the
// sqlite-vec distance functions. A linear scan keeps metadata filtering
// exact; at the collection sizes Mnemo targets this beats maintaining an
// ANN index.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

func init() {
	sqlite_vec.Auto()

	store.RegisterBackend("sqlite", func(dataPath string, cfg store.Config) (store.VectorStore, error) {
		return New(filepath.Join(dataPath, cfg.Collection+".db"), cfg)
	})
}

// Compile-time interface check.
var _ store.VectorStore = (*Store)(nil)

// Store implements store.VectorStore backed by SQLite with sqlite-vec.
type Store struct {
	db         *sql.DB
	collection string

	// writeMu serializes inserts so store-assigned timestamps stay
	// monotonically non-decreasing in arrival order.
	writeMu   sync.Mutex
	lastStamp time.Time
	now       func() time.Time
}

// New opens (or creates) a SQLite database at dbPath and initialises the
// records and collection tables. cfg.Dimensions > 0 pins the collection
// dimension up front; 0 lets the first insert establish it.
func New(dbPath string, cfg store.Config) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "pinging sqlite db")
	}

	collection := cfg.Collection
	if collection == "" {
		collection = store.DefaultCollection
	}

	s := &Store{db: db, collection: collection, now: time.Now}

	if err := s.migrate(cfg.Dimensions); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Recover the monotonic timestamp floor after a restart.
	var maxStamp sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(created_at) FROM records`).Scan(&maxStamp); err != nil {
		_ = db.Close()
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreDatabaseFailure, "reading last timestamp")
	}
	if maxStamp.Valid {
		s.lastStamp = time.Unix(0, maxStamp.Int64).UTC()
	}

	return s, nil
}

func (s *Store) migrate(dimensions int) error {
	const recordsDDL = `
CREATE TABLE IF NOT EXISTS records (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	embedding  BLOB NOT NULL,
	text       TEXT NOT NULL DEFAULT '',
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL
)`
	if _, err := s.db.Exec(recordsDDL); err != nil {
		return mnemoerr.Wrap(err, mnemoerr.CodeStoreDatabaseFailure, "creating records table")
	}

	const collectionDDL = `
CREATE TABLE IF NOT EXISTS collection (
	name       TEXT PRIMARY KEY,
	dimensions INTEGER NOT NULL
)`
	if _, err := s.db.Exec(collectionDDL); err != nil {
		return mnemoerr.Wrap(err, mnemoerr.CodeStoreDatabaseFailure, "creating collection table")
	}

	if dimensions > 0 {
		const pin = `INSERT INTO collection(name, dimensions) VALUES (?, ?)
ON CONFLICT(name) DO NOTHING`
		if _, err := s.db.Exec(pin, s.collection, dimensions); err != nil {
			return mnemoerr.Wrap(err, mnemoerr.CodeStoreDatabaseFailure, "pinning collection dimensions")
		}
	}

	return nil
}

// SetClock overrides the time source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.now = now
}

func (s *Store) Insert(ctx context.Context, vector []float32, text string, md store.Metadata) (*store.Record, error) {
	if err := store.ValidateVector(vector); err != nil {
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

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeInputInvalid, "serializing embedding")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	dims, err := s.dimensionsTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := store.CheckDimension(dims, len(vector)); err != nil {
		return nil, err
	}

	stamp := s.now().UTC()
	if stamp.Before(s.lastStamp) {
		stamp = s.lastStamp
	}

	id := uuid.New().String()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO records(id, embedding, text, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, blob, text, string(metaJSON), stamp.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreInsertConflict,
				"duplicate record id", mnemoerr.FieldRecordID(id))
		}
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreDatabaseFailure, "inserting record")
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreDatabaseFailure, "reading record seq")
	}

	if dims == 0 {
		const establish = `INSERT INTO collection(name, dimensions) VALUES (?, ?)
ON CONFLICT(name) DO UPDATE SET dimensions = excluded.dimensions`
		if _, err := tx.ExecContext(ctx, establish, s.collection, len(vector)); err != nil {
			return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreDatabaseFailure, "establishing collection dimensions")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "committing insert")
	}

	s.lastStamp = stamp

	vec := make([]float32, len(vector))
	copy(vec, vector)

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
	row := s.db.QueryRowContext(ctx,
		`SELECT seq, id, embedding, text, metadata, created_at FROM records WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mnemoerr.New(mnemoerr.CodeStoreRecordNotFound,
			"record not found", mnemoerr.FieldRecordID(id))
	}
	if err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreDatabaseFailure, "reading record")
	}
	return rec, nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int, opts store.QueryOpts) ([]store.QueryResult, error) {
	if err := store.ValidateVector(vector); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, mnemoerr.New(mnemoerr.CodeInputInvalid, "top_k must be at least 1")
	}

	dims, err := s.Dimensions(ctx)
	if err != nil {
		return nil, err
	}
	if dims == 0 {
		return []store.QueryResult{}, nil
	}
	if err := store.CheckDimension(dims, len(vector)); err != nil {
		return nil, err
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeInputInvalid, "serializing query vector")
	}

	q := strings.Builder{}
	q.WriteString(`SELECT seq, id, text, metadata, created_at,
vec_distance_cosine(embedding, ?) AS distance
FROM records`)

	args := []any{blob}
	var conds []string

	for key, val := range opts.Filter {
		conds = append(conds, `json_extract(metadata, ?) = ?`)
		args = append(args, jsonPath(key), filterArg(val))
	}
	if opts.MinConfidence > 0 {
		conds = append(conds, `COALESCE(json_extract(metadata, '$.confidence'), 0) >= ?`)
		args = append(args, opts.MinConfidence)
	}
	if len(opts.Exclude) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(opts.Exclude)), ",")
		conds = append(conds, `id NOT IN (`+placeholders+`)`)
		for _, id := range opts.Exclude {
			args = append(args, id)
		}
	}

	if len(conds) > 0 {
		q.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "querying records")
	}
	defer func() { _ = rows.Close() }()

	// Candidates are re-sorted in Go: SQL ORDER BY compares raw floats and
	// would break the tolerance-based tie ordering at the LIMIT boundary.
	var results []store.QueryResult
	for rows.Next() {
		var (
			r        store.QueryResult
			metaStr  string
			stampNS  int64
			distance float64
		)
		if err := rows.Scan(&r.Seq, &r.RecordID, &r.Document, &metaStr, &stampNS, &distance); err != nil {
			return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreDatabaseFailure, "scanning query result")
		}
		if math.IsNaN(distance) {
			// Zero-magnitude stored vector; treat as maximally distant.
			distance = 1
		}
		if opts.MaxDistance > 0 && distance > opts.MaxDistance {
			continue
		}
		r.Distance = distance
		r.CreatedAt = time.Unix(0, stampNS).UTC()
		if err := json.Unmarshal([]byte(metaStr), &r.Metadata); err != nil {
			return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreDatabaseFailure, "unmarshalling metadata")
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "iterating query results")
	}

	store.SortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	if results == nil {
		results = []store.QueryResult{}
	}
	return results, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]*store.Record, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as "no limit".
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, embedding, text, metadata, created_at FROM records ORDER BY seq ASC LIMIT ?`, limit)
	if err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "listing records")
	}
	defer func() { _ = rows.Close() }()

	var out []*store.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreDatabaseFailure, "scanning record")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "iterating records")
	}
	return out, nil
}

func (s *Store) Dimensions(ctx context.Context) (int, error) {
	var dims int
	err := s.db.QueryRowContext(ctx,
		`SELECT dimensions FROM collection WHERE name = ?`, s.collection).Scan(&dims)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, mnemoerr.Wrap(err, mnemoerr.CodeStoreUnavailable, "reading collection dimensions")
	}
	return dims, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) dimensionsTx(ctx context.Context, tx *sql.Tx) (int, error) {
	var dims int
	err := tx.QueryRowContext(ctx,
		`SELECT dimensions FROM collection WHERE name = ?`, s.collection).Scan(&dims)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, mnemoerr.Wrap(err, mnemoerr.CodeStoreDatabaseFailure, "reading collection dimensions")
	}
	return dims, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*store.Record, error) {
	var (
		rec     store.Record
		blob    []byte
		metaStr string
		stampNS int64
	)
	if err := row.Scan(&rec.Seq, &rec.ID, &blob, &rec.Text, &metaStr, &stampNS); err != nil {
		return nil, err
	}
	rec.Vector = blobToVector(blob)
	rec.CreatedAt = time.Unix(0, stampNS).UTC()
	if err := json.Unmarshal([]byte(metaStr), &rec.Metadata); err != nil {
		return nil, err
	}
	return &rec, nil
}

// blobToVector decodes the little-endian float32 layout sqlite-vec uses.
func blobToVector(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec
}

// filterArg converts a metadata Value into its SQL comparison argument.
// SQLite's json_extract yields 0/1 integers for JSON booleans.
// jsonPath builds a bound json_extract path for one metadata key. The key
// is quoted as a JSON string, so any character — quotes included — stays a
// plain key and never reaches the SQL text.
func jsonPath(key string) string {
	escaped := strings.ReplaceAll(key, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `$."` + escaped + `"`
}

func filterArg(v store.Value) any {
	if b, ok := v.Bool(); ok {
		if b {
			return 1
		}
		return 0
	}
	return v.Any()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
