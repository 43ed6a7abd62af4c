// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package partitioning detects MBR and GPT partition tables at the start of an image stream.
package partitioning

import (
	"fmt"
	"io"
	"strconv"

	"github.com/siderolabs/go-pointer"
	"go.uber.org/zap"

	"github.com/siderolabs/go-imagestream/internal/ioutil"
	"github.com/siderolabs/go-imagestream/partitioning/gpt"
	"github.com/siderolabs/go-imagestream/partitioning/mbr"
)

// MaxBytes is the maximum number of bytes consumed from the stream.
const MaxBytes = 65536

// Block sizes probed for the GPT header.
const (
	MinBlockSize = 512
	MaxBlockSize = 4096
)

// Table is the result of sniffing the partition table.
type Table struct {
	HasMBR bool `json:"hasMBR"`
	HasGPT bool `json:"hasGPT"`

	// BlockSize is the block size GPT was found at, zero without GPT.
	BlockSize uint `json:"blockSize,omitempty"`

	Partitions []Partition `json:"partitions,omitempty"`
}

// Partition is a partition entry of either MBR or GPT.
//
// ID and Name are only set for GPT partitions, Extended only for MBR ones.
type Partition struct {
	Type     string  `json:"type"`
	ID       *string `json:"id"`
	Name     *string `json:"name"`
	FirstLBA uint64  `json:"firstLBA"`
	LastLBA  uint64  `json:"lastLBA"`
	Extended bool    `json:"extended"`
}

// Options configures Sniff.
type Options struct {
	Logger *zap.Logger

	Size      uint64
	ExactSize bool
}

// Option is a function that sets some option.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithSizeHint passes the size of the decompressed image.
//
// The hint never changes the result, a GPT describing a disk larger than an
// exactly sized image is only logged.
func WithSizeHint(size uint64, exact bool) Option {
	return func(o *Options) {
		o.Size = size
		o.ExactSize = exact
	}
}

// Sniff reads at most MaxBytes from r and parses the partition table found there.
//
// Sniff never closes r. Errors reading the stream are returned as is.
func Sniff(r io.Reader, opts ...Option) (*Table, error) {
	buf, err := ioutil.ReadAtMost(r, MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("error reading image prefix: %w", err)
	}

	return Parse(buf, opts...)
}

// Parse parses the partition table from the image prefix in buf.
func Parse(buf []byte, opts ...Option) (*Table, error) {
	options := Options{
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	logger := options.Logger.With(zap.Int("prefix_size", len(buf)))

	mbrTable, err := mbr.Parse(buf)
	if err != nil {
		logger.Debug("no MBR found", zap.Error(err))

		return &Table{}, nil
	}

	result := &Table{
		HasMBR: true,
	}

	for blockSize := uint(MinBlockSize); blockSize <= MaxBlockSize; blockSize *= 2 {
		gptTable, err := gpt.Parse(buf, blockSize)
		if err != nil {
			logger.Debug("no GPT", zap.Uint("block_size", blockSize), zap.Error(err))

			continue
		}

		logger.Debug("found GPT", zap.Uint("block_size", blockSize), zap.Int("partitions", len(gptTable.Partitions)))

		if options.ExactSize && (gptTable.LastUsableLBA+1)*uint64(blockSize) > options.Size {
			logger.Debug("GPT describes a disk larger than the image", zap.Uint64("last_usable_lba", gptTable.LastUsableLBA), zap.Uint64("size", options.Size))
		}

		result.HasGPT = true
		result.BlockSize = blockSize
		result.Partitions = make([]Partition, 0, len(gptTable.Partitions))

		for _, part := range gptTable.Partitions {
			if !gptTable.InUsableRange(part) {
				logger.Debug("GPT partition outside of the usable range", zap.Uint("index", part.Index), zap.Uint64("first_lba", part.FirstLBA), zap.Uint64("last_lba", part.LastLBA))
			}

			result.Partitions = append(result.Partitions, Partition{
				Type:     part.TypeGUID.String(),
				ID:       pointer.To(part.PartGUID.String()),
				Name:     pointer.To(part.Name),
				FirstLBA: part.FirstLBA,
				LastLBA:  part.LastLBA,
			})
		}

		return result, nil
	}

	used := mbrTable.Used()

	logger.Debug("found MBR",
		zap.Int("partitions", len(used)),
		zap.Bool("efi_part", mbrTable.HasEFIPart()),
		zap.Uint32("disk_signature", mbrTable.DiskSignature),
	)

	result.Partitions = make([]Partition, 0, len(used))

	for _, part := range used {
		result.Partitions = append(result.Partitions, Partition{
			Type:     strconv.Itoa(int(part.Type)),
			FirstLBA: part.FirstLBA,
			LastLBA:  part.LastLBA(),
			Extended: part.Extended(),
		})
	}

	return result, nil
}
