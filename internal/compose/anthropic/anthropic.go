// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package anthropic provides a generative composer backed by the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mnemo-dev/mnemo/internal/compose"
	"github.com/mnemo-dev/mnemo/internal/rank"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5"

// maxAnswerTokens bounds the composed answer.
const maxAnswerTokens = 1024

const systemPrompt = "You answer questions using only the memories given to you. " +
	"Memories are prior statements the user asked to remember. Answer " +
	"concisely; if the memories do not cover the question, say so instead " +
	"of guessing."

func init() {
	compose.RegisterProvider("anthropic", func(cfg compose.Config) (compose.Composer, error) {
		return New(cfg)
	})
}

// Compile-time interface check.
var _ compose.Composer = (*Composer)(nil)

// Composer calls the Anthropic Messages API to synthesize answers.
type Composer struct {
	client  anthropicsdk.Client
	model   string
	timeout time.Duration
}

// New creates an Anthropic composer. Returns an error if the API key is
// missing.
func New(cfg compose.Config) (*Composer, error) {
	if cfg.APIKey == "" {
		return nil, mnemoerr.New(mnemoerr.CodeConfigValidateInvalidValue,
			"anthropic composer: missing api_key", mnemoerr.FieldProvider("anthropic"))
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = compose.DefaultTimeout
	}

	return &Composer{
		client:  anthropicsdk.NewClient(opts...),
		model:   model,
		timeout: timeout,
	}, nil
}

func (c *Composer) Name() string { return "anthropic" }

func (c *Composer) Compose(ctx context.Context, query string, matches []rank.Match) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.model),
		MaxTokens: maxAnswerTokens,
		System: []anthropicsdk.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(
				anthropicsdk.NewTextBlock(buildPrompt(query, matches)),
			),
		},
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", mnemoerr.Wrap(err, mnemoerr.CodeComposeFailure,
			"anthropic messages call failed", mnemoerr.FieldProvider("anthropic"))
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	answer := strings.TrimSpace(b.String())
	if answer == "" {
		return "", mnemoerr.New(mnemoerr.CodeComposeFailure,
			"anthropic returned no text content", mnemoerr.FieldProvider("anthropic"))
	}
	return answer, nil
}

// buildPrompt lays the retrieved memories out before the question, most
// relevant first.
func buildPrompt(query string, matches []rank.Match) string {
	var b strings.Builder
	if len(matches) == 0 {
		b.WriteString("No memories were retrieved.\n\n")
	} else {
		b.WriteString("Memories:\n")
		for i, m := range matches {
			if m.Document == "" {
				continue
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, m.Document)
		}
		b.WriteString("\n")
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}
