// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/internal/config"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Long:  "Check the running server's status endpoint and display engine information.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", config.DefaultListen, "server address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	var body struct {
		Status     string `json:"status"`
		Version    string `json:"version"`
		Backend    string `json:"backend"`
		Dimensions int    `json:"dimensions"`
		Provider   string `json:"embedding_provider"`
		Model      string `json:"embedding_model"`
		Records    int    `json:"records"`
	}
	if err := newDaemonClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if mnemoerr.HasCode(err, mnemoerr.CodeCLIDaemonNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (connection refused)\n", addr)
			return nil
		}
		return err
	}

	_, _ = fmt.Fprintf(out, "Server at %s: %s (version %s)\n", addr, body.Status, body.Version)
	_, _ = fmt.Fprintf(out, "  backend:    %s\n", body.Backend)
	_, _ = fmt.Fprintf(out, "  dimensions: %d\n", body.Dimensions)
	_, _ = fmt.Fprintf(out, "  embedder:   %s (%s)\n", body.Provider, body.Model)
	_, _ = fmt.Fprintf(out, "  records:    %d\n", body.Records)
	return nil
}
