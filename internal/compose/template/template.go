// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package template provides the deterministic, offline composer. The
// answer is a fixed-format digest of the retrieved memories; no model
// call is made. This is the default composer.
package template

import (
	"context"
	"fmt"
	"strings"

	"github.com/mnemo-dev/mnemo/internal/compose"
	"github.com/mnemo-dev/mnemo/internal/rank"
)

// MaxSnippets caps how many retrieved documents the digest quotes.
const MaxSnippets = 3

func init() {
	compose.RegisterProvider("template", func(compose.Config) (compose.Composer, error) {
		return New(), nil
	})
}

// Compile-time interface check.
var _ compose.Composer = (*Composer)(nil)

// Composer renders answers from a fixed template.
type Composer struct{}

// New creates a template composer.
func New() *Composer { return &Composer{} }

func (c *Composer) Name() string { return "template" }

func (c *Composer) Compose(_ context.Context, query string, matches []rank.Match) (string, error) {
	snippets := make([]string, 0, MaxSnippets)
	for _, m := range matches {
		if len(snippets) == MaxSnippets {
			break
		}
		if m.Document == "" {
			continue
		}
		snippets = append(snippets, m.Document)
	}

	if len(snippets) == 0 {
		return fmt.Sprintf("I don't have relevant memories for: %s", query), nil
	}

	var b strings.Builder
	b.WriteString("Relevant memories:\n")
	b.WriteString(strings.Join(snippets, "\n---\n"))
	b.WriteString("\n\nThese are the stored memories most related to your question.")
	return b.String(), nil
}
