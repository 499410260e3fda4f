// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mnemo-dev/mnemo/internal/rank"
	"github.com/mnemo-dev/mnemo/internal/session"
	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// SourceVectorImport tags records inserted through the raw-vector path.
const SourceVectorImport = "vector_import"

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "create-memory",
		Method:      http.MethodPost,
		Path:        "/api/v1/memories",
		Summary:     "Store a memory from text or a pre-computed vector",
		Tags:        []string{"memories"},
	}, s.handleCreateMemory)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-memories",
		Method:      http.MethodGet,
		Path:        "/api/v1/memories",
		Summary:     "List stored memories in insertion order",
		Tags:        []string{"memories"},
	}, s.handleListMemories)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-memory",
		Method:      http.MethodGet,
		Path:        "/api/v1/memories/{id}",
		Summary:     "Get one memory by id",
		Tags:        []string{"memories"},
	}, s.handleGetMemory)

	huma.Register(s.api, huma.Operation{
		OperationID: "converse",
		Method:      http.MethodPost,
		Path:        "/api/v1/converse",
		Summary:     "Run a conversational turn against session memory",
		Tags:        []string{"retrieval"},
	}, s.handleConverse)

	huma.Register(s.api, huma.Operation{
		OperationID: "recall",
		Method:      http.MethodPost,
		Path:        "/api/v1/recall",
		Summary:     "Retrieve memories by text without storing anything",
		Tags:        []string{"retrieval"},
	}, s.handleRecall)

	huma.Register(s.api, huma.Operation{
		OperationID: "engine-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Engine status",
		Tags:        []string{"system"},
	}, s.handleStatus)
}

// --- Request/Response types for huma ---

type createMemoryInput struct {
	Body struct {
		Text      string         `json:"text,omitempty" doc:"Memory text; embedded server-side"`
		Vector    []float32      `json:"vector,omitempty" doc:"Pre-computed vector; bypasses embedding"`
		SessionID string         `json:"session_id,omitempty" doc:"Session scope; empty means the shared anonymous scope"`
		Source    string         `json:"source,omitempty" doc:"Origin tag stored in metadata"`
		Metadata  map[string]any `json:"metadata,omitempty" doc:"Additional scalar metadata"`
	}
}
type createMemoryOutput struct {
	Body struct {
		ID   string `json:"id" doc:"Assigned record id"`
		Text string `json:"text,omitempty" doc:"Cleaned stored text"`
	}
}

type listMemoriesInput struct {
	Limit int `query:"limit" default:"50" minimum:"0" doc:"Maximum records to return; 0 means all"`
}
type listMemoriesOutput struct {
	Body struct {
		Memories []memorySummary `json:"memories"`
		Count    int             `json:"count"`
	}
}

type memorySummary struct {
	ID        string         `json:"id"`
	Text      string         `json:"text,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type getMemoryInput struct {
	ID string `path:"id"`
}
type getMemoryOutput struct {
	Body memorySummary
}

type converseInput struct {
	Body struct {
		Message   string `json:"message" minLength:"1" doc:"User message"`
		SessionID string `json:"session_id,omitempty"`
		TopK      int    `json:"top_k,omitempty" minimum:"0" doc:"Result cap; 0 uses the configured default"`
	}
}
type converseOutput struct {
	Body struct {
		Query          string           `json:"query"`
		SessionID      string           `json:"session_id"`
		Retrieved      []rank.Match     `json:"retrieved"`
		Answer         string           `json:"answer,omitempty"`
		Composer       string           `json:"composer"`
		Stored         *session.Receipt `json:"stored"`
		Stage          string           `json:"stage"`
		Partial        bool             `json:"partial,omitempty" doc:"True when the message was stored but a downstream stage failed"`
		RetrievalError string           `json:"retrieval_error,omitempty"`
		ComposeError   string           `json:"compose_error,omitempty"`
	}
}

type recallInput struct {
	Body struct {
		Text      string `json:"text" minLength:"1" doc:"Query text"`
		SessionID string `json:"session_id,omitempty"`
		TopK      int    `json:"top_k,omitempty" minimum:"0"`
	}
}
type recallOutput struct {
	Body struct {
		Matches []rank.Match `json:"matches"`
	}
}

type statusOutput struct {
	Body struct {
		Status     string `json:"status" example:"ok"`
		Version    string `json:"version"`
		Backend    string `json:"backend"`
		Dimensions int    `json:"dimensions" doc:"Established vector dimension; 0 while the collection is empty"`
		Provider   string `json:"embedding_provider"`
		Model      string `json:"embedding_model"`
		Records    int    `json:"records"`
	}
}

// --- Handlers ---

func (s *Server) handleCreateMemory(ctx context.Context, input *createMemoryInput) (*createMemoryOutput, error) {
	body := input.Body
	out := &createMemoryOutput{}

	switch {
	case body.Text != "" && len(body.Vector) > 0:
		return nil, huma.Error400BadRequest("provide either text or vector, not both")

	case body.Text != "":
		extra, err := store.MetadataFromAny(body.Metadata)
		if err != nil {
			return nil, apiError(err, "invalid metadata")
		}
		receipt, err := s.services.Orchestrator.Remember(ctx, body.Text, body.SessionID, body.Source, extra)
		if err != nil {
			return nil, apiError(err, "storing memory")
		}
		out.Body.ID = receipt.ID
		out.Body.Text = receipt.Text
		return out, nil

	case len(body.Vector) > 0:
		md, err := vectorImportMetadata(body.SessionID, body.Source, body.Metadata)
		if err != nil {
			return nil, apiError(err, "invalid metadata")
		}
		rec, err := s.services.Store.Insert(ctx, body.Vector, "", md)
		if err != nil {
			return nil, apiError(err, "inserting vector")
		}
		out.Body.ID = rec.ID
		return out, nil

	default:
		return nil, huma.Error400BadRequest("text or vector is required")
	}
}

func (s *Server) handleListMemories(ctx context.Context, input *listMemoriesInput) (*listMemoriesOutput, error) {
	records, err := s.services.Store.List(ctx, input.Limit)
	if err != nil {
		return nil, apiError(err, "listing memories")
	}

	out := &listMemoriesOutput{}
	out.Body.Memories = make([]memorySummary, len(records))
	for i, rec := range records {
		out.Body.Memories[i] = toSummary(rec)
	}
	out.Body.Count = len(records)
	return out, nil
}

func (s *Server) handleGetMemory(ctx context.Context, input *getMemoryInput) (*getMemoryOutput, error) {
	rec, err := s.services.Store.Get(ctx, input.ID)
	if err != nil {
		return nil, apiError(err, "getting memory")
	}
	return &getMemoryOutput{Body: toSummary(rec)}, nil
}

func (s *Server) handleConverse(ctx context.Context, input *converseInput) (*converseOutput, error) {
	turn, err := s.services.Orchestrator.Converse(ctx, input.Body.Message, input.Body.SessionID, input.Body.TopK)
	if err != nil {
		return nil, apiError(err, "running turn")
	}

	out := &converseOutput{}
	out.Body.Query = turn.Query
	out.Body.SessionID = turn.SessionID
	out.Body.Retrieved = turn.Retrieved
	out.Body.Answer = turn.Answer
	out.Body.Composer = turn.Composer
	out.Body.Stored = turn.Receipt
	out.Body.Stage = string(turn.Stage)
	if turn.RetrievalErr != nil {
		out.Body.Partial = true
		out.Body.RetrievalError = turn.RetrievalErr.Error()
	}
	if turn.ComposeErr != nil {
		out.Body.Partial = true
		out.Body.ComposeError = turn.ComposeErr.Error()
	}
	if out.Body.Retrieved == nil {
		out.Body.Retrieved = []rank.Match{}
	}
	return out, nil
}

func (s *Server) handleRecall(ctx context.Context, input *recallInput) (*recallOutput, error) {
	matches, err := s.services.Orchestrator.Recall(ctx, input.Body.Text, input.Body.SessionID, input.Body.TopK)
	if err != nil {
		return nil, apiError(err, "recalling memories")
	}

	out := &recallOutput{}
	out.Body.Matches = matches
	if out.Body.Matches == nil {
		out.Body.Matches = []rank.Match{}
	}
	return out, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	dims, err := s.services.Store.Dimensions(ctx)
	if err != nil {
		return nil, apiError(err, "reading store status")
	}
	records, err := s.services.Store.List(ctx, 0)
	if err != nil {
		return nil, apiError(err, "reading store status")
	}

	out := &statusOutput{}
	out.Body.Status = "ok"
	out.Body.Version = s.services.Version
	out.Body.Backend = s.services.Backend
	out.Body.Dimensions = dims
	out.Body.Provider = s.services.Provider
	out.Body.Model = s.services.Embedder.Model()
	out.Body.Records = len(records)
	return out, nil
}

// apiError maps an engine error to the matching huma status error. The
// stable error code travels in the response detail.
func apiError(err error, msg string) error {
	return huma.NewError(mnemoerr.HTTPStatus(err), msg, err)
}

func toSummary(rec *store.Record) memorySummary {
	return memorySummary{
		ID:        rec.ID,
		Text:      rec.Text,
		Metadata:  rec.Metadata.ToAny(),
		CreatedAt: rec.CreatedAt,
	}
}

// vectorImportMetadata normalizes caller metadata for the raw-vector
// path and applies the session and source tags.
func vectorImportMetadata(sessionID, source string, raw map[string]any) (store.Metadata, error) {
	md, err := store.MetadataFromAny(raw)
	if err != nil {
		return nil, err
	}
	if md == nil {
		md = store.Metadata{}
	}
	if sessionID == "" {
		sessionID = session.AnonymousSession
	}
	if source == "" {
		source = SourceVectorImport
	}
	md["session_id"] = store.StringValue(sessionID)
	md["source"] = store.StringValue(source)
	return md, nil
}
