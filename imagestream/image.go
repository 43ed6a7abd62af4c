// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package imagestream

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/siderolabs/go-imagestream/archive"
	"github.com/siderolabs/go-imagestream/format"
	"github.com/siderolabs/go-imagestream/partitioning"
)

// ErrConsumed is returned when the image stream was already opened.
var ErrConsumed = errors.New("image stream already consumed")

// FinalSize is the size of the decompressed image.
type FinalSize struct {
	// Estimation is true if Value might be wrong.
	Estimation bool   `json:"estimation"`
	Value      uint64 `json:"value"`
}

// SizeInfo describes the size of the image.
type SizeInfo struct {
	// Original is the size of the file on disk.
	Original uint64    `json:"original"`
	Final    FinalSize `json:"final"`
}

// Image is an image file ready to be read.
//
// The stream of the image can be opened only once.
type Image struct {
	Path string

	// Extension is the extension of the image itself, e.g. "img" for "foo.img.xz".
	Extension string
	// ArchiveExtension is the extension of the compressed file or archive, if any.
	ArchiveExtension string

	Format format.Type
	Size   SizeInfo

	// Archive is set for archives carrying image metadata.
	Archive *archive.Metadata

	stream    io.ReadCloser
	transform io.ReadCloser
}

// Consumed returns true if the stream was opened or released.
func (img *Image) Consumed() bool {
	return img.stream == nil
}

// Open returns the decompressed image stream.
//
// The caller owns the stream and should close it. Open can only be called once.
func (img *Image) Open() (io.ReadCloser, error) {
	if img.stream == nil {
		return nil, ErrConsumed
	}

	p := &pipeline{
		stream:    img.stream,
		transform: img.transform,
	}

	img.stream, img.transform = nil, nil

	return p, nil
}

// Close releases the image stream if it wasn't opened.
func (img *Image) Close() error {
	if img.stream == nil {
		return nil
	}

	p := &pipeline{
		stream:    img.stream,
		transform: img.transform,
	}

	img.stream, img.transform = nil, nil

	return p.Close()
}

// pipeline reads through the transform, if any.
type pipeline struct {
	stream    io.ReadCloser
	transform io.ReadCloser
}

func (p *pipeline) Read(b []byte) (int, error) {
	if p.transform != nil {
		return p.transform.Read(b)
	}

	return p.stream.Read(b)
}

// Close closes the transform first, then the source stream.
func (p *pipeline) Close() error {
	var errs []error

	if p.transform != nil {
		if err := p.transform.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing decompressor: %w", err))
		}
	}

	if err := p.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing image stream: %w", err))
	}

	return errors.Join(errs...)
}

// Metadata describes the image and its partition table.
type Metadata struct {
	Path             string `json:"path"`
	Extension        string `json:"extension"`
	ArchiveExtension string `json:"archiveExtension,omitempty"`
	MIMEType         string `json:"mimeType"`

	Size SizeInfo `json:"size"`

	Archive *archive.Metadata `json:"archive,omitempty"`

	HasMBR     bool                     `json:"hasMBR"`
	HasGPT     bool                     `json:"hasGPT"`
	Partitions []partitioning.Partition `json:"partitions,omitempty"`
}

// ReadPartitions consumes the beginning of the image stream to detect the partition table.
//
// The image stream is closed before returning.
func ReadPartitions(img *Image, opts ...Option) (*Metadata, error) {
	options := newOptions(opts...)

	r, err := img.Open()
	if err != nil {
		return nil, err
	}

	table, err := partitioning.Sniff(r,
		partitioning.WithLogger(options.Logger),
		partitioning.WithSizeHint(img.Size.Final.Value, !img.Size.Final.Estimation),
	)

	if closeErr := r.Close(); closeErr != nil {
		if err == nil {
			err = closeErr
		} else {
			options.Logger.Warn("failed to close image stream", zap.String("path", img.Path), zap.Error(closeErr))
		}
	}

	if err != nil {
		return nil, err
	}

	return &Metadata{
		Path:             img.Path,
		Extension:        img.Extension,
		ArchiveExtension: img.ArchiveExtension,
		MIMEType:         img.Format.MIME(),
		Size:             img.Size,
		Archive:          img.Archive,
		HasMBR:           table.HasMBR,
		HasGPT:           table.HasGPT,
		Partitions:       table.Partitions,
	}, nil
}
