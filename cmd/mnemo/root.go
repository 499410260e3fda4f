// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/internal/config"
)

// NewRootCmd creates the root mnemo command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mnemo",
		Short:         "Mnemo — conversational memory engine",
		Long:          "Mnemo stores conversational memories as embeddings and answers questions from the memories it has retrieved.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newStartCmd(),
		newRememberCmd(),
		newAskCmd(),
		newRecallCmd(),
		newListCmd(),
		newStatusCmd(),
		newDoctorCmd(),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig resolves the config path (--config flag, else the default
// location, bootstrapping a commented default file on first run) and
// loads it. A path from the flag must exist; the discovered default may
// be absent, in which case built-in defaults and env vars apply.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		config.WarnInsecurePermissions(path)
		return cfg, nil
	}

	path, err := config.DefaultConfigPath()
	if err != nil {
		// No resolvable home directory; run on defaults and env alone.
		return config.Load("")
	}

	if _, statErr := os.Stat(path); statErr != nil {
		if bootstrapped := config.BootstrapConfig(); bootstrapped != "" {
			path = bootstrapped
		} else {
			return config.Load("")
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	config.WarnInsecurePermissions(path)
	return cfg, nil
}
