// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/internal/config"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored memories",
		Long:  "List memories in insertion order from the running server.",
		RunE:  runList,
	}

	cmd.Flags().String("address", config.DefaultListen, "server address")
	cmd.Flags().IntP("limit", "n", 50, "maximum records to show (0 shows all)")

	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	limit, _ := cmd.Flags().GetInt("limit")

	var body struct {
		Memories []struct {
			ID        string         `json:"id"`
			Text      string         `json:"text"`
			Metadata  map[string]any `json:"metadata"`
			CreatedAt time.Time      `json:"created_at"`
		} `json:"memories"`
		Count int `json:"count"`
	}
	path := fmt.Sprintf("/api/v1/memories?limit=%d", limit)
	if err := newDaemonClient(addr).getJSON(path, &body); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if body.Count == 0 {
		_, _ = fmt.Fprintln(out, "No memories stored.")
		return nil
	}
	for _, m := range body.Memories {
		text := m.Text
		if text == "" {
			text = "(vector only)"
		}
		session := ""
		if s, ok := m.Metadata["session_id"].(string); ok {
			session = s
		}
		_, _ = fmt.Fprintf(out, "%s  %s  [%s] %s\n",
			m.CreatedAt.Format(time.RFC3339), m.ID, session, text)
	}
	return nil
}
