// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/google/renameio/v2"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siderolabs/go-imagestream/imagestream"
)

var extractCmdFlags struct {
	force bool
}

var extractCmd = &cobra.Command{
	Use:   "extract <path> <output>",
	Short: "Decompress the image into a raw image file",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return extract(args[0], args[1])
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractCmdFlags.force, "force", false, "overwrite the output file")
}

func extract(path, output string) error {
	if !extractCmdFlags.force {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("output file %q already exists", output)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	img, err := imagestream.GetFromFilePath(path, imagestream.WithLogger(logger))
	if err != nil {
		return err
	}

	defer img.Close() //nolint:errcheck

	r, err := img.Open()
	if err != nil {
		return err
	}

	defer r.Close() //nolint:errcheck

	pf, err := renameio.NewPendingFile(output, renameio.WithPermissions(0o644))
	if err != nil {
		return err
	}

	defer pf.Cleanup() //nolint:errcheck

	// estimated sizes might be exceeded
	total := int64(img.Size.Final.Value)
	if img.Size.Final.Estimation {
		total = -1
	}

	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("extracting"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)

	n, err := io.Copy(io.MultiWriter(pf, bar), r)
	if err != nil {
		return fmt.Errorf("error extracting image: %w", err)
	}

	if err = bar.Finish(); err != nil {
		return err
	}

	if err = pf.CloseAtomicallyReplace(); err != nil {
		return err
	}

	logger.Info("extracted image", zap.String("path", path), zap.String("output", output), zap.Int64("size", n))

	return nil
}
