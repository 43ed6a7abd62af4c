// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package main implements a CLI to inspect and extract disk images.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siderolabs/go-imagestream/usererror"
)

var rootCmdFlags struct {
	debug bool
}

var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:           "imagestream",
	Short:         "Inspect and extract (compressed) disk images",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		var err error

		if rootCmdFlags.debug {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}

		return err
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		logger.Sync() //nolint:errcheck
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&rootCmdFlags.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(infoCmd, extractCmd, formatsCmd)
}

// formatError renders user errors with their description.
func formatError(err error) string {
	if uerr, ok := usererror.As(err); ok {
		if uerr.Description == "" {
			return uerr.Title
		}

		return fmt.Sprintf("%s: %s", uerr.Title, uerr.Description)
	}

	return err.Error()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", formatError(err))

		os.Exit(1)
	}
}
