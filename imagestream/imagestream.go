// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package imagestream opens (compressed) disk images as a stream of their decompressed contents.
//
// The format of the file is detected from its first bytes, the size of the
// decompressed image is found (or estimated) without decompressing the
// whole file, and the partition table is read from the beginning of the stream.
package imagestream

import (
	"os"

	"go.uber.org/zap"

	"github.com/siderolabs/go-imagestream/format"
	"github.com/siderolabs/go-imagestream/internal/udif"
	"github.com/siderolabs/go-imagestream/usererror"
)

// Options configures opening images.
type Options struct {
	Logger *zap.Logger
}

// Option is a function that sets some option.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func newOptions(opts ...Option) *Options {
	options := &Options{
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(options)
	}

	return options
}

// GetFromFilePath opens the image file at path.
//
// The caller should either consume the stream of the image with Image.Open or release it with Image.Close.
func GetFromFilePath(path string, opts ...Option) (*Image, error) {
	options := newOptions(opts...)

	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !st.Mode().IsRegular() {
		return nil, usererror.New("Invalid image", "The image must be a file")
	}

	typ, err := format.Classify(path)
	if err != nil {
		return nil, err
	}

	if typ == format.OctetStream {
		// UDIF images don't always start with a compressed chunk
		isUDIF, err := udif.HasFooter(path)
		if err != nil {
			return nil, err
		}

		if isUDIF {
			typ = format.AppleDiskImage
		}
	}

	logger := options.Logger.With(zap.String("path", path), zap.String("mime", typ.MIME()))
	logger.Debug("detected image format", zap.Int64("size", st.Size()))

	img, err := handlerFor(typ)(path, uint64(st.Size()), options)
	if err != nil {
		return nil, err
	}

	img.Format = typ

	if img.ArchiveExtension == img.Extension {
		img.ArchiveExtension = ""
	}

	logger.Debug("opened image",
		zap.String("extension", img.Extension),
		zap.Uint64("final_size", img.Size.Final.Value),
		zap.Bool("estimation", img.Size.Final.Estimation),
	)

	return img, nil
}

// GetImageMetadata opens the image at path and reads its partition table.
func GetImageMetadata(path string, opts ...Option) (*Metadata, error) {
	img, err := GetFromFilePath(path, opts...)
	if err != nil {
		return nil, err
	}

	return ReadPartitions(img, opts...)
}
