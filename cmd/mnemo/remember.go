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

func newRememberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remember <text>",
		Short: "Store a memory",
		Long:  "Send a memory to the running server. The text is cleaned, embedded, and stored durably.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRemember,
	}

	cmd.Flags().String("address", config.DefaultListen, "server address")
	cmd.Flags().StringP("session", "s", "", "session scope (empty uses the shared anonymous scope)")
	cmd.Flags().String("source", "", "origin tag stored in metadata")
	cmd.Flags().StringToString("meta", nil, "additional metadata key=value pairs")

	return cmd
}

func runRemember(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	sessionID, _ := cmd.Flags().GetString("session")
	source, _ := cmd.Flags().GetString("source")
	meta, _ := cmd.Flags().GetStringToString("meta")

	text := strings.Join(args, " ")
	if strings.TrimSpace(text) == "" {
		return mnemoerr.New(mnemoerr.CodeCLIInputInvalid, "remember: text must not be empty")
	}

	payload := map[string]any{
		"text":       text,
		"session_id": sessionID,
		"source":     source,
	}
	if len(meta) > 0 {
		md := make(map[string]any, len(meta))
		for k, v := range meta {
			md[k] = v
		}
		payload["metadata"] = md
	}

	var body struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	if err := newDaemonClient(addr).postJSON("/api/v1/memories", payload, &body); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored %s: %s\n", body.ID, body.Text)
	return nil
}
