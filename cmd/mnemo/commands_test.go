// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/mnemo-dev/mnemo/internal/compose/template"
	"github.com/mnemo-dev/mnemo/internal/embed/static"
	"github.com/mnemo-dev/mnemo/internal/server"
	"github.com/mnemo-dev/mnemo/internal/session"
	"github.com/mnemo-dev/mnemo/internal/store/memory"
)

func init() {
	keyring.MockInit()
}

// execute runs the root command with args and returns captured stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// startTestDaemon serves a full engine over httptest and returns its
// host:port address.
func startTestDaemon(t *testing.T) string {
	t.Helper()

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)

	st := memory.New(0)
	t.Cleanup(func() { _ = st.Close() })
	embedder := static.New(32)

	orch, err := session.New(session.Config{
		Embedder: embedder,
		Store:    st,
		Composer: template.New(),
	})
	require.NoError(t, err)

	srv.RegisterServices(&server.Services{
		Orchestrator: orch,
		Store:        st,
		Embedder:     embedder,
		Backend:      "memory",
		Provider:     "static",
		Version:      "test",
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return strings.TrimPrefix(ts.URL, "http://")
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mnemo dev")
}

func TestRootListsSubcommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"start", "remember", "ask", "recall", "list", "status", "doctor", "secret", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestRememberAndAskRoundTrip(t *testing.T) {
	addr := startTestDaemon(t)

	out, err := execute(t, "remember", "the", "cat", "is", "orange",
		"--address", addr, "--session", "cli")
	require.NoError(t, err)
	assert.Contains(t, out, "Stored")
	assert.Contains(t, out, "the cat is orange")

	out, err = execute(t, "ask", "what color is the cat?",
		"--address", addr, "--session", "cli", "--show-retrieved")
	require.NoError(t, err)
	assert.Contains(t, out, "the cat is orange")
}

func TestRecallCmd(t *testing.T) {
	addr := startTestDaemon(t)

	_, err := execute(t, "remember", "water boils at 100C", "--address", addr, "--session", "cli")
	require.NoError(t, err)

	out, err := execute(t, "recall", "water boils at 100C", "--address", addr, "--session", "cli")
	require.NoError(t, err)
	assert.Contains(t, out, "water boils at 100C")

	out, err = execute(t, "recall", "unrelated", "--address", addr, "--session", "empty")
	require.NoError(t, err)
	assert.Contains(t, out, "No matching memories.")
}

func TestListCmd(t *testing.T) {
	addr := startTestDaemon(t)

	out, err := execute(t, "list", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "No memories stored.")

	_, err = execute(t, "remember", "first memory", "--address", addr)
	require.NoError(t, err)

	out, err = execute(t, "list", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "first memory")
}

func TestStatusCmd(t *testing.T) {
	addr := startTestDaemon(t)

	out, err := execute(t, "status", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "memory")
	assert.Contains(t, out, "static")
}

func TestStatusCmdNotRunning(t *testing.T) {
	out, err := execute(t, "status", "--address", "127.0.0.1:1")
	require.NoError(t, err)
	assert.Contains(t, out, "not running")
}

func TestRememberCmdNotRunning(t *testing.T) {
	_, err := execute(t, "remember", "orphan memory", "--address", "127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mnemo start")
}

func TestDoctorCmd(t *testing.T) {
	addr := startTestDaemon(t)

	out, err := execute(t, "doctor", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Binary:")
	assert.Contains(t, out, "mnemo dev")
	assert.Contains(t, out, "Platform:")
	assert.Contains(t, out, "ok at "+addr)
	assert.Contains(t, out, "available")
}

func TestDoctorCmdServerDown(t *testing.T) {
	out, err := execute(t, "doctor", "--address", "127.0.0.1:1")
	require.NoError(t, err)
	assert.Contains(t, out, "not running at 127.0.0.1:1")
}

func TestSecretCommands(t *testing.T) {
	out, err := execute(t, "secret", "set", "embedding.api_key", "sk-cli-test")
	require.NoError(t, err)
	assert.Contains(t, out, "Stored secret: embedding.api_key")

	out, err = execute(t, "secret", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "embedding.api_key")

	out, err = execute(t, "secret", "delete", "embedding.api_key")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted secret: embedding.api_key")

	_, err = execute(t, "secret", "delete", "embedding.api_key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
