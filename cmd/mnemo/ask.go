// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/internal/config"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask a question against session memory",
		Long:  "Run a conversational turn: the message is stored as context and answered from the session's prior memories.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}

	cmd.Flags().String("address", config.DefaultListen, "server address")
	cmd.Flags().StringP("session", "s", "", "session scope (empty uses the shared anonymous scope)")
	cmd.Flags().IntP("top-k", "k", 0, "result cap (0 uses the server default)")
	cmd.Flags().Bool("show-retrieved", false, "also print the retrieved memories")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	sessionID, _ := cmd.Flags().GetString("session")
	topK, _ := cmd.Flags().GetInt("top-k")
	showRetrieved, _ := cmd.Flags().GetBool("show-retrieved")

	message := strings.Join(args, " ")
	if strings.TrimSpace(message) == "" {
		return mnemoerr.New(mnemoerr.CodeCLIInputInvalid, "ask: message must not be empty")
	}

	var body struct {
		Retrieved []struct {
			Document string  `json:"document"`
			Score    float64 `json:"score"`
		} `json:"retrieved"`
		Answer         string `json:"answer"`
		Partial        bool   `json:"partial"`
		RetrievalError string `json:"retrieval_error"`
		ComposeError   string `json:"compose_error"`
		Stored         struct {
			ID string `json:"id"`
		} `json:"stored"`
	}
	err := newDaemonClient(addr).postJSON("/api/v1/converse", map[string]any{
		"message":    message,
		"session_id": sessionID,
		"top_k":      topK,
	}, &body)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if body.RetrievalError != "" {
		_, _ = fmt.Fprintf(out, "Stored %s, but retrieval failed: %s\n", body.Stored.ID, body.RetrievalError)
		return nil
	}

	if showRetrieved {
		for _, m := range body.Retrieved {
			_, _ = fmt.Fprintf(out, "  [%.3f] %s\n", m.Score, m.Document)
		}
	}
	if body.ComposeError != "" {
		_, _ = fmt.Fprintf(out, "Stored %s and retrieved %d memories, but composing an answer failed: %s\n",
			body.Stored.ID, len(body.Retrieved), body.ComposeError)
		return nil
	}
	_, _ = fmt.Fprintln(out, body.Answer)
	return nil
}
