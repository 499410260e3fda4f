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

func newRecallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall <text>",
		Short: "Retrieve memories by text",
		Long:  "Search session memory without storing the query.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRecall,
	}

	cmd.Flags().String("address", config.DefaultListen, "server address")
	cmd.Flags().StringP("session", "s", "", "session scope (empty uses the shared anonymous scope)")
	cmd.Flags().IntP("top-k", "k", 0, "result cap (0 uses the server default)")

	return cmd
}

func runRecall(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	sessionID, _ := cmd.Flags().GetString("session")
	topK, _ := cmd.Flags().GetInt("top-k")

	text := strings.Join(args, " ")
	if strings.TrimSpace(text) == "" {
		return mnemoerr.New(mnemoerr.CodeCLIInputInvalid, "recall: text must not be empty")
	}

	var body struct {
		Matches []struct {
			RecordID string  `json:"record_id"`
			Document string  `json:"document"`
			Score    float64 `json:"score"`
			Distance float64 `json:"distance"`
		} `json:"matches"`
	}
	err := newDaemonClient(addr).postJSON("/api/v1/recall", map[string]any{
		"text":       text,
		"session_id": sessionID,
		"top_k":      topK,
	}, &body)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(body.Matches) == 0 {
		_, _ = fmt.Fprintln(out, "No matching memories.")
		return nil
	}
	for _, m := range body.Matches {
		_, _ = fmt.Fprintf(out, "[%.3f] %s  %s\n", m.Score, m.RecordID, m.Document)
	}
	return nil
}
