// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-dev/mnemo/internal/compose/template"
	"github.com/mnemo-dev/mnemo/internal/embed/static"
	"github.com/mnemo-dev/mnemo/internal/rank"
	"github.com/mnemo-dev/mnemo/internal/session"
	"github.com/mnemo-dev/mnemo/internal/store"
	"github.com/mnemo-dev/mnemo/internal/store/memory"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
	"github.com/mnemo-dev/mnemo/pkg/types"
)

func newOrchestrator(t *testing.T) (*session.Orchestrator, store.VectorStore) {
	t.Helper()
	st := memory.New(0)
	t.Cleanup(func() { _ = st.Close() })

	o, err := session.New(session.Config{
		Embedder: static.New(static.DefaultDimensions),
		Store:    st,
		Composer: template.New(),
	})
	require.NoError(t, err)
	return o, st
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := session.New(session.Config{})
	require.Error(t, err)
	assert.True(t, mnemoerr.IsInvalidInput(err))
}

func TestRememberStoresCleanedText(t *testing.T) {
	o, st := newOrchestrator(t)
	ctx := context.Background()

	receipt, err := o.Remember(ctx, "  I like   <b>coffee</b>  ", "s1", "", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, "I like coffee", receipt.Text)

	rec, err := st.Get(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, "I like coffee", rec.Text)
	assert.Equal(t, store.StringValue("s1"), rec.Metadata["session_id"])
	assert.Equal(t, store.StringValue(session.SourceManual), rec.Metadata["source"])
}

func TestRememberEmptyText(t *testing.T) {
	o, _ := newOrchestrator(t)

	_, err := o.Remember(context.Background(), "   <p></p>  ", "s1", "", nil)
	require.Error(t, err)
	assert.Equal(t, mnemoerr.CodeInputEmpty, mnemoerr.CodeOf(err))
}

func TestRememberNoDeduplication(t *testing.T) {
	o, _ := newOrchestrator(t)
	ctx := context.Background()

	first, err := o.Remember(ctx, "same memory", "s1", "", nil)
	require.NoError(t, err)
	second, err := o.Remember(ctx, "same memory", "s1", "", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRememberExtrasCannotOverrideOwnedKeys(t *testing.T) {
	o, st := newOrchestrator(t)
	ctx := context.Background()

	receipt, err := o.Remember(ctx, "tagged memory", "real", "importer", store.Metadata{
		"session_id": store.StringValue("spoofed"),
		"topic":      store.StringValue("drinks"),
	})
	require.NoError(t, err)

	rec, err := st.Get(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StringValue("real"), rec.Metadata["session_id"])
	assert.Equal(t, store.StringValue("importer"), rec.Metadata["source"])
	assert.Equal(t, store.StringValue("drinks"), rec.Metadata["topic"])
}

func TestConverseFullTurn(t *testing.T) {
	o, _ := newOrchestrator(t)
	ctx := context.Background()

	_, err := o.Remember(ctx, "I drink espresso every morning", "s1", "", nil)
	require.NoError(t, err)

	turn, err := o.Converse(ctx, "what do I drink?", "s1", 5)
	require.NoError(t, err)
	assert.Equal(t, types.StageResponded, turn.Stage)
	assert.Equal(t, "what do I drink?", turn.Query)
	assert.Equal(t, "s1", turn.SessionID)
	assert.Equal(t, "template", turn.Composer)
	require.NotNil(t, turn.Receipt)
	assert.NotEmpty(t, turn.Answer)
	assert.Nil(t, turn.RetrievalErr)
	require.Len(t, turn.Retrieved, 1)
	assert.Equal(t, "I drink espresso every morning", turn.Retrieved[0].Document)
}

func TestConverseNeverRetrievesItself(t *testing.T) {
	o, _ := newOrchestrator(t)
	ctx := context.Background()

	// Identical text embeds to an identical vector, so without the
	// exclusion the stored turn would be its own best match.
	_, err := o.Remember(ctx, "favorite color is blue", "s1", "", nil)
	require.NoError(t, err)

	turn, err := o.Converse(ctx, "favorite color is blue", "s1", 10)
	require.NoError(t, err)
	require.NotNil(t, turn.Receipt)
	for _, m := range turn.Retrieved {
		assert.NotEqual(t, turn.Receipt.ID, m.RecordID)
	}
	require.Len(t, turn.Retrieved, 1)
}

func TestConverseSessionIsolation(t *testing.T) {
	o, _ := newOrchestrator(t)
	ctx := context.Background()

	_, err := o.Remember(ctx, "alpha session secret", "alpha", "", nil)
	require.NoError(t, err)
	_, err = o.Remember(ctx, "beta session secret", "beta", "", nil)
	require.NoError(t, err)

	turn, err := o.Converse(ctx, "what is the secret?", "alpha", 10)
	require.NoError(t, err)
	for _, m := range turn.Retrieved {
		assert.Equal(t, store.StringValue("alpha"), m.Metadata["session_id"])
	}
}

func TestConverseAnonymousSession(t *testing.T) {
	o, _ := newOrchestrator(t)
	ctx := context.Background()

	_, err := o.Remember(ctx, "anonymous fact", "", "", nil)
	require.NoError(t, err)

	turn, err := o.Converse(ctx, "anything known?", "", 10)
	require.NoError(t, err)
	assert.Equal(t, session.AnonymousSession, turn.SessionID)
	require.Len(t, turn.Retrieved, 1)
	assert.Equal(t, "anonymous fact", turn.Retrieved[0].Document)
}

func TestConverseTaggedAsUserPrompt(t *testing.T) {
	o, st := newOrchestrator(t)
	ctx := context.Background()

	turn, err := o.Converse(ctx, "first message", "s1", 5)
	require.NoError(t, err)

	rec, err := st.Get(ctx, turn.Receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StringValue(session.SourceUserPrompt), rec.Metadata["source"])
}

func TestConverseTopKOverflow(t *testing.T) {
	o, _ := newOrchestrator(t)
	ctx := context.Background()

	_, err := o.Remember(ctx, "only memory", "s1", "", nil)
	require.NoError(t, err)

	turn, err := o.Converse(ctx, "tell me things", "s1", 50)
	require.NoError(t, err)
	assert.Len(t, turn.Retrieved, 1)
}

func TestConverseEmptyCollection(t *testing.T) {
	o, _ := newOrchestrator(t)

	turn, err := o.Converse(context.Background(), "hello?", "fresh", 5)
	require.NoError(t, err)
	assert.Empty(t, turn.Retrieved)
	assert.Equal(t, types.StageResponded, turn.Stage)
	assert.Contains(t, turn.Answer, "don't have relevant memories")
}

func TestRecallDoesNotInsert(t *testing.T) {
	o, st := newOrchestrator(t)
	ctx := context.Background()

	_, err := o.Remember(ctx, "stored fact", "s1", "", nil)
	require.NoError(t, err)

	matches, err := o.Recall(ctx, "stored fact", "s1", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 0, matches[0].Distance, 1e-6)

	records, err := st.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRecallEmptyText(t *testing.T) {
	o, _ := newOrchestrator(t)
	_, err := o.Recall(context.Background(), "  ", "s1", 5)
	require.Error(t, err)
	assert.Equal(t, mnemoerr.CodeInputEmpty, mnemoerr.CodeOf(err))
}

// failingEmbedder always errors, standing in for an unreachable provider.
type failingEmbedder struct{}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, mnemoerr.New(mnemoerr.CodeEmbedUnavailable, "provider down")
}
func (failingEmbedder) Dimensions() int { return 4 }
func (failingEmbedder) Model() string   { return "failing" }

func TestEmbedFailureIsFastAndLeavesNothingBehind(t *testing.T) {
	st := memory.New(0)
	t.Cleanup(func() { _ = st.Close() })
	o, err := session.New(session.Config{
		Embedder: failingEmbedder{},
		Store:    st,
		Composer: template.New(),
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = o.Remember(ctx, "never stored", "s1", "", nil)
	require.Error(t, err)
	assert.True(t, mnemoerr.IsEmbeddingUnavailable(err))

	turn, err := o.Converse(ctx, "never stored either", "s1", 5)
	require.Error(t, err)
	assert.Nil(t, turn)

	records, err := st.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

// queryFailingStore delegates to a real store but fails every Query.
type queryFailingStore struct {
	store.VectorStore
}

func (s queryFailingStore) Query(context.Context, []float32, int, store.QueryOpts) ([]store.QueryResult, error) {
	return nil, mnemoerr.New(mnemoerr.CodeStoreUnavailable, "backend offline")
}

func TestConversePartialSuccessOnRetrievalFailure(t *testing.T) {
	st := memory.New(0)
	t.Cleanup(func() { _ = st.Close() })
	o, err := session.New(session.Config{
		Embedder: static.New(16),
		Store:    queryFailingStore{VectorStore: st},
		Composer: template.New(),
	})
	require.NoError(t, err)
	ctx := context.Background()

	turn, err := o.Converse(ctx, "store me anyway", "s1", 5)
	require.NoError(t, err)
	require.NotNil(t, turn)
	assert.Equal(t, types.StageFailed, turn.Stage)
	require.NotNil(t, turn.Receipt)
	require.Error(t, turn.RetrievalErr)
	assert.Equal(t, mnemoerr.CodeSessionRetrievalFailure, mnemoerr.CodeOf(turn.RetrievalErr))
	assert.Empty(t, turn.Retrieved)
	assert.Empty(t, turn.Answer)

	// The write is durable despite the failed retrieval.
	rec, err := st.Get(ctx, turn.Receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, "store me anyway", rec.Text)
}

// failingComposer always errors, standing in for an unreachable
// generative provider.
type failingComposer struct{}

func (failingComposer) Compose(context.Context, string, []rank.Match) (string, error) {
	return "", mnemoerr.New(mnemoerr.CodeComposeFailure, "provider offline")
}
func (failingComposer) Name() string { return "failing" }

func TestConversePartialSuccessOnComposeFailure(t *testing.T) {
	st := memory.New(0)
	t.Cleanup(func() { _ = st.Close() })
	o, err := session.New(session.Config{
		Embedder: static.New(16),
		Store:    st,
		Composer: failingComposer{},
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = o.Remember(ctx, "prior context", "s1", "", nil)
	require.NoError(t, err)

	turn, err := o.Converse(ctx, "answer me", "s1", 5)
	require.NoError(t, err)
	require.NotNil(t, turn)
	assert.Equal(t, types.StageFailed, turn.Stage)
	require.NotNil(t, turn.Receipt)
	require.Error(t, turn.ComposeErr)
	assert.Equal(t, mnemoerr.CodeComposeFailure, mnemoerr.CodeOf(turn.ComposeErr))
	assert.Nil(t, turn.RetrievalErr)
	assert.Empty(t, turn.Answer)

	// The retrieved matches are valid even though no answer was composed.
	require.Len(t, turn.Retrieved, 1)
	assert.Equal(t, "prior context", turn.Retrieved[0].Document)

	// The write is durable despite the failed composition.
	rec, err := st.Get(ctx, turn.Receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, "answer me", rec.Text)
}

func TestConverseDefaultTopK(t *testing.T) {
	o, _ := newOrchestrator(t)
	ctx := context.Background()

	for _, text := range []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7"} {
		_, err := o.Remember(ctx, text, "s1", "", nil)
		require.NoError(t, err)
	}

	turn, err := o.Converse(ctx, "everything", "s1", 0)
	require.NoError(t, err)
	assert.Len(t, turn.Retrieved, session.DefaultTopK)
}
