// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package session sequences the per-turn retrieval pipeline:
// clean → embed → store → retrieve → rank → compose. The orchestrator
// holds no state between requests beyond what the vector store persists.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/mnemo-dev/mnemo/internal/compose"
	"github.com/mnemo-dev/mnemo/internal/embed"
	"github.com/mnemo-dev/mnemo/internal/rank"
	"github.com/mnemo-dev/mnemo/internal/store"
	"github.com/mnemo-dev/mnemo/internal/textproc"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
	"github.com/mnemo-dev/mnemo/pkg/types"
)

// AnonymousSession is the shared scope used when a caller supplies no
// session id. All anonymous callers retrieve from one pool; this is a
// documented limitation, not a bug.
const AnonymousSession = "anonymous"

// SourceUserPrompt tags records inserted by Converse, making the turn
// itself retrievable context for future turns.
const SourceUserPrompt = "user_prompt"

// SourceManual tags records inserted by Remember when the caller names
// no source.
const SourceManual = "manual"

// DefaultTopK is used when a caller passes top_k <= 0.
const DefaultTopK = 5

// Metadata keys the orchestrator owns. Caller-supplied extras never
// override them.
const (
	metaSessionID = "session_id"
	metaSource    = "source"
)

// Config holds dependencies and retrieval tuning for the Orchestrator.
type Config struct {
	Embedder embed.Embedder
	Store    store.VectorStore
	Composer compose.Composer

	// TopK is the default result count when a call passes top_k <= 0.
	TopK int
	// MinConfidence and MaxDistance pass through to store.QueryOpts.
	MinConfidence float64
	MaxDistance   float64
	// RecencyWeight and HalfLife enable the ranking recency boost.
	RecencyWeight float64
	HalfLife      time.Duration

	Logger *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Receipt acknowledges a durable write.
type Receipt struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Turn is the result of one Converse call.
//
// A Turn with RetrievalErr or ComposeErr set is a partial success: the
// message was stored durably (Receipt is valid) but a downstream stage
// failed, and Stage is the failed terminal state. With RetrievalErr set,
// Retrieved and Answer are empty; with ComposeErr set, Retrieved is valid
// and only Answer is missing.
type Turn struct {
	Query     string       `json:"query"`
	SessionID string       `json:"session_id"`
	Retrieved []rank.Match `json:"retrieved"`
	Answer    string       `json:"answer"`
	Composer  string       `json:"composer"`
	Receipt   *Receipt     `json:"stored"`
	Stage     types.Stage  `json:"stage"`

	RetrievalErr error `json:"-"`
	ComposeErr   error `json:"-"`
}

// Orchestrator runs the retrieval pipeline. Safe for concurrent use:
// every dependency is constructed once and shared read-only.
type Orchestrator struct {
	embedder embed.Embedder
	store    store.VectorStore
	composer compose.Composer

	topK          int
	minConfidence float64
	maxDistance   float64
	recencyWeight float64
	halfLife      time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// New creates an Orchestrator. Embedder, Store, and Composer are
// required.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Embedder == nil || cfg.Store == nil || cfg.Composer == nil {
		return nil, mnemoerr.New(mnemoerr.CodeInputInvalid,
			"session: embedder, store, and composer are required")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		embedder:      cfg.Embedder,
		store:         cfg.Store,
		composer:      cfg.Composer,
		topK:          topK,
		minConfidence: cfg.MinConfidence,
		maxDistance:   cfg.MaxDistance,
		recencyWeight: cfg.RecencyWeight,
		halfLife:      cfg.HalfLife,
		logger:        logger,
		now:           now,
	}, nil
}

// Remember stores one memory: clean → embed → insert. No retrieval is
// performed, and identical text submitted twice produces two distinct
// records; memories are append-only events, not deduplicated keys.
func (o *Orchestrator) Remember(ctx context.Context, text, sessionID, source string, extra store.Metadata) (*Receipt, error) {
	cleaned := textproc.Clean(text)
	if cleaned == "" {
		return nil, mnemoerr.New(mnemoerr.CodeInputEmpty, "remember: text is empty after cleaning")
	}
	if source == "" {
		source = SourceManual
	}

	vector, err := o.embedOne(ctx, cleaned)
	if err != nil {
		return nil, err
	}

	rec, err := o.store.Insert(ctx, vector, cleaned, turnMetadata(sessionOrAnon(sessionID), source, extra))
	if err != nil {
		return nil, err
	}

	o.logger.Debug("memory stored",
		"record_id", rec.ID, "session_id", sessionOrAnon(sessionID), "source", source)
	return &Receipt{ID: rec.ID, Text: cleaned}, nil
}

// Converse runs a full turn: the message is embedded, stored as
// retrievable context, and answered from the session's prior memories.
// The just-inserted record is excluded from its own turn's retrieval.
//
// If the insert succeeds but retrieval or composition fails, Converse
// returns a partial Turn (nil error) carrying the receipt and the stage
// failure, because the write is already durable.
func (o *Orchestrator) Converse(ctx context.Context, message, sessionID string, topK int) (*Turn, error) {
	turn := &Turn{
		SessionID: sessionOrAnon(sessionID),
		Composer:  o.composer.Name(),
		Stage:     types.StageReceived,
	}

	cleaned := textproc.Clean(message)
	if cleaned == "" {
		return nil, mnemoerr.New(mnemoerr.CodeInputEmpty, "converse: message is empty after cleaning")
	}
	turn.Query = cleaned

	// EMBEDDED — fail fast, nothing durable yet.
	vector, err := o.embedOne(ctx, cleaned)
	if err != nil {
		return nil, err
	}
	turn.Stage = types.StageEmbedded

	// STORED — the turn becomes context for future turns.
	rec, err := o.store.Insert(ctx, vector, cleaned, turnMetadata(turn.SessionID, SourceUserPrompt, nil))
	if err != nil {
		return nil, err
	}
	turn.Receipt = &Receipt{ID: rec.ID, Text: cleaned}
	turn.Stage = types.StageStored

	// RETRIEVED — scoped to the session, excluding the record just
	// written. A failure here is partial: the write already happened.
	results, err := o.store.Query(ctx, vector, o.resolveTopK(topK), store.QueryOpts{
		Filter:        store.Filter{metaSessionID: store.StringValue(turn.SessionID)},
		Exclude:       []string{rec.ID},
		MinConfidence: o.minConfidence,
		MaxDistance:   o.maxDistance,
	})
	if err != nil {
		o.logger.Warn("retrieval failed after durable insert",
			"record_id", rec.ID, "session_id", turn.SessionID, "error", err)
		turn.Stage = types.StageFailed
		turn.RetrievalErr = mnemoerr.Wrap(err, mnemoerr.CodeSessionRetrievalFailure,
			"query after insert", mnemoerr.FieldRecordID(rec.ID))
		return turn, nil
	}
	results = o.dropSelfMatches(results, rec.ID, turn.SessionID)
	turn.Stage = types.StageRetrieved

	// RANKED — pure transform, never suspends.
	turn.Retrieved = rank.Rank(results, o.rankOptions())
	turn.Stage = types.StageRanked

	// COMPOSED — external collaborator synthesizes the answer. Like the
	// retrieval stage, a failure here is partial: the write is durable
	// and the retrieved matches are already valid.
	answer, err := o.composer.Compose(ctx, cleaned, turn.Retrieved)
	if err != nil {
		o.logger.Warn("composition failed after durable insert",
			"record_id", rec.ID, "session_id", turn.SessionID, "error", err)
		turn.Stage = types.StageFailed
		turn.ComposeErr = mnemoerr.Wrap(err, mnemoerr.CodeComposeFailure,
			"composing answer", mnemoerr.FieldRecordID(rec.ID))
		return turn, nil
	}
	turn.Answer = answer
	turn.Stage = types.StageResponded

	return turn, nil
}

// Recall retrieves by text without storing anything: clean → embed →
// query → rank.
func (o *Orchestrator) Recall(ctx context.Context, text, sessionID string, topK int) ([]rank.Match, error) {
	cleaned := textproc.Clean(text)
	if cleaned == "" {
		return nil, mnemoerr.New(mnemoerr.CodeInputEmpty, "recall: text is empty after cleaning")
	}

	vector, err := o.embedOne(ctx, cleaned)
	if err != nil {
		return nil, err
	}

	results, err := o.store.Query(ctx, vector, o.resolveTopK(topK), store.QueryOpts{
		Filter:        store.Filter{metaSessionID: store.StringValue(sessionOrAnon(sessionID))},
		MinConfidence: o.minConfidence,
		MaxDistance:   o.maxDistance,
	})
	if err != nil {
		return nil, err
	}
	return rank.Rank(results, o.rankOptions()), nil
}

func (o *Orchestrator) embedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, mnemoerr.Errorf(mnemoerr.CodeEmbedResponseInvalid,
			"embedder returned %d vectors for 1 input", len(vectors))
	}
	return vectors[0], nil
}

// dropSelfMatches removes the just-inserted record from results. The
// store's Exclude option should make this a no-op; a backend leaking the
// record through is a defect worth logging.
func (o *Orchestrator) dropSelfMatches(results []store.QueryResult, selfID, sessionID string) []store.QueryResult {
	kept := results[:0]
	for _, r := range results {
		if r.RecordID == selfID {
			o.logger.Error("backend returned the just-inserted record despite exclusion",
				"record_id", selfID, "session_id", sessionID)
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func (o *Orchestrator) resolveTopK(topK int) int {
	if topK <= 0 {
		return o.topK
	}
	return topK
}

func (o *Orchestrator) rankOptions() rank.Options {
	return rank.Options{
		RecencyWeight: o.recencyWeight,
		HalfLife:      o.halfLife,
		Now:           o.now(),
	}
}

func sessionOrAnon(sessionID string) string {
	if sessionID == "" {
		return AnonymousSession
	}
	return sessionID
}

// turnMetadata builds record metadata, letting extras through except for
// the orchestrator-owned keys.
func turnMetadata(sessionID, source string, extra store.Metadata) store.Metadata {
	md := make(store.Metadata, len(extra)+2)
	for k, v := range extra {
		if k == metaSessionID || k == metaSource {
			continue
		}
		md[k] = v
	}
	md[metaSessionID] = store.StringValue(sessionID)
	md[metaSource] = store.StringValue(source)
	return md
}
