// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/siderolabs/go-imagestream/format"
)

var formatsCmdFlags struct {
	json bool
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported file extensions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fileTypes := format.SupportedFileTypes()

		if formatsCmdFlags.json {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(fileTypes)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

		fmt.Fprintln(w, "EXTENSION\tTYPE")

		for _, ft := range fileTypes {
			fmt.Fprintf(w, "%s\t%s\n", ft.Extension, ft.Kind)
		}

		return w.Flush()
	},
}

func init() {
	formatsCmd.Flags().BoolVar(&formatsCmdFlags.json, "json", false, "output JSON")
}
