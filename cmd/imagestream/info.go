// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/siderolabs/go-imagestream/imagestream"
)

var infoCmdFlags struct {
	json        bool
	concurrency int
}

var infoCmd = &cobra.Command{
	Use:   "info <path>...",
	Short: "Show the format, size and partition table of images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results := make([]*imagestream.Metadata, len(args))

		eg, ctx := errgroup.WithContext(cmd.Context())
		eg.SetLimit(max(infoCmdFlags.concurrency, 1))

		for i, path := range args {
			eg.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}

				metadata, err := imagestream.GetImageMetadata(path, imagestream.WithLogger(logger))
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				results[i] = metadata

				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			return err
		}

		if infoCmdFlags.json {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(results)
		}

		for _, metadata := range results {
			if err := printMetadata(cmd.OutOrStdout(), metadata); err != nil {
				return err
			}
		}

		return nil
	},
}

func init() {
	infoCmd.Flags().BoolVar(&infoCmdFlags.json, "json", false, "output JSON")
	infoCmd.Flags().IntVar(&infoCmdFlags.concurrency, "concurrency", 4, "number of images probed in parallel")
}

func printMetadata(out io.Writer, metadata *imagestream.Metadata) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	finalSize := humanize.IBytes(metadata.Size.Final.Value)
	if metadata.Size.Final.Estimation {
		finalSize = "~" + finalSize
	}

	fmt.Fprintf(w, "PATH\t%s\n", metadata.Path)
	fmt.Fprintf(w, "FORMAT\t%s\n", metadata.MIMEType)
	fmt.Fprintf(w, "EXTENSION\t%s\n", metadata.Extension)

	if metadata.ArchiveExtension != "" {
		fmt.Fprintf(w, "ARCHIVE EXTENSION\t%s\n", metadata.ArchiveExtension)
	}

	fmt.Fprintf(w, "SIZE\t%s\n", humanize.IBytes(metadata.Size.Original))
	fmt.Fprintf(w, "IMAGE SIZE\t%s\n", finalSize)
	fmt.Fprintf(w, "MBR\t%v\n", metadata.HasMBR)
	fmt.Fprintf(w, "GPT\t%v\n", metadata.HasGPT)

	if metadata.Archive != nil && metadata.Archive.Name != "" {
		fmt.Fprintf(w, "NAME\t%s %s\n", metadata.Archive.Name, metadata.Archive.Version)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	if len(metadata.Partitions) == 0 {
		_, err := fmt.Fprintln(out)

		return err
	}

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "\nTYPE\tID\tNAME\tFIRST LBA\tLAST LBA\tEXTENDED")

	for _, part := range metadata.Partitions {
		id, name := "-", "-"

		if part.ID != nil {
			id = *part.ID
		}

		if part.Name != nil {
			name = *part.Name
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%v\n", part.Type, id, name, part.FirstLBA, part.LastLBA, part.Extended)
	}

	fmt.Fprintln(w)

	return w.Flush()
}
