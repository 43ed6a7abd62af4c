// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package gpttest writes GPT partition tables into image files for tests.
package gpttest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"

	"github.com/siderolabs/go-imagestream/internal/gptstructs"
	"github.com/siderolabs/go-imagestream/internal/gptutil"
	"github.com/siderolabs/go-imagestream/partitioning/gpt"
)

const maxNameBytes = 72

// Options configures Write.
type Options struct {
	SkipPMBR         bool
	MarkPMBRBootable bool
}

// Option is a function that sets some option.
type Option func(*Options)

// WithSkipPMBR is an option to skip writing protective MBR.
func WithSkipPMBR() Option {
	return func(o *Options) {
		o.SkipPMBR = true
	}
}

// WithMarkPMBRBootable is an option to mark protective MBR bootable.
func WithMarkPMBRBootable() Option {
	return func(o *Options) {
		o.MarkPMBRBootable = true
	}
}

// layout is the placement of both GPT copies in an image.
type layout struct {
	blockSize uint

	lastLBA        uint64
	entriesBlocks  uint64
	primaryEntries uint64
	backupEntries  uint64
}

func newLayout(blockSize uint, imageSize uint64) (layout, error) {
	if !gptutil.ValidBlockSize(blockSize) {
		return layout{}, fmt.Errorf("invalid block size %d", blockSize)
	}

	lastLBA, ok := gptutil.LastLBA(imageSize, blockSize)
	if !ok || lastLBA < 33 {
		return layout{}, errors.New("image too small for GPT")
	}

	l := layout{
		blockSize:     blockSize,
		lastLBA:       lastLBA,
		entriesBlocks: (gptstructs.ENTRY_SIZE*gptstructs.NumEntries + uint64(blockSize) - 1) / uint64(blockSize),
	}

	l.primaryEntries = gptstructs.HeaderLBA + 1
	l.backupEntries = lastLBA - l.entriesBlocks

	return l, nil
}

func (l layout) firstUsable() uint64 { return l.primaryEntries + l.entriesBlocks }
func (l layout) lastUsable() uint64  { return l.backupEntries - 1 }

func (l layout) offset(lba uint64) int64 { return int64(lba) * int64(l.blockSize) }

func encodeEntries(t *gpt.Table) ([]byte, error) {
	if len(t.Partitions) > gptstructs.NumEntries {
		return nil, fmt.Errorf("too many partitions: %d", len(t.Partitions))
	}

	array := make([]byte, gptstructs.ENTRY_SIZE*gptstructs.NumEntries)
	encoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()

	for i, part := range t.Partitions {
		name, err := encoder.Bytes([]byte(part.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to encode partition name: %w", err)
		}

		if len(name) > maxNameBytes {
			return nil, fmt.Errorf("partition name %q too long: %d bytes", part.Name, len(name))
		}

		entry := gptstructs.Entry(array[i*gptstructs.ENTRY_SIZE : (i+1)*gptstructs.ENTRY_SIZE])
		entry.PutPartitionTypeGUID(gptutil.EncodeGUID(part.TypeGUID))
		entry.PutUniquePartitionGUID(gptutil.EncodeGUID(part.PartGUID))
		entry.PutStartingLBA(part.FirstLBA)
		entry.PutEndingLBA(part.LastLBA)
		entry.PutAttributes(part.Flags)
		entry.PutPartitionName(name)
	}

	return array, nil
}

// Write writes the partition table (protective MBR, primary and secondary GPT) to w.
//
// The table is laid out for an image of imageSize bytes with the specified block size,
// usable LBA range and block size of t are updated.
func Write(w io.WriterAt, t *gpt.Table, blockSize uint, imageSize uint64, opts ...Option) error {
	var options Options

	for _, opt := range opts {
		opt(&options)
	}

	l, err := newLayout(blockSize, imageSize)
	if err != nil {
		return err
	}

	array, err := encodeEntries(t)
	if err != nil {
		return err
	}

	t.FirstUsableLBA = l.firstUsable()
	t.LastUsableLBA = l.lastUsable()
	t.BlockSize = blockSize

	if t.DiskGUID == uuid.Nil {
		t.DiskGUID = uuid.New()
	}

	// GPT header occupies a whole block
	template := gptstructs.Header(make([]byte, blockSize))
	template.PutSignature(gptstructs.HeaderSignature)
	template.PutRevision(0x00010000)
	template.PutHeaderSize(gptstructs.HEADER_SIZE)
	template.PutFirstUsableLBA(t.FirstUsableLBA)
	template.PutLastUsableLBA(t.LastUsableLBA)
	template.PutDiskGUID(gptutil.EncodeGUID(t.DiskGUID))
	template.PutNumPartitionEntries(gptstructs.NumEntries)
	template.PutSizeofPartitionEntry(gptstructs.ENTRY_SIZE)
	template.PutPartitionEntryArrayCRC32(crc32.ChecksumIEEE(array))

	copies := [...]struct {
		name       string
		headerLBA  uint64
		altLBA     uint64
		entriesLBA uint64
	}{
		{name: "primary", headerLBA: gptstructs.HeaderLBA, altLBA: l.lastLBA, entriesLBA: l.primaryEntries},
		{name: "secondary", headerLBA: l.lastLBA, altLBA: gptstructs.HeaderLBA, entriesLBA: l.backupEntries},
	}

	for _, c := range copies {
		hdr := gptstructs.Header(bytes.Clone(template))
		hdr.PutMyLBA(c.headerLBA)
		hdr.PutAlternateLBA(c.altLBA)
		hdr.PutPartitionEntriesLBA(c.entriesLBA)
		hdr.PutHeaderCRC32(hdr.Checksum())

		if _, err = w.WriteAt(array, l.offset(c.entriesLBA)); err != nil {
			return fmt.Errorf("failed to write %s entries: %w", c.name, err)
		}

		if _, err = w.WriteAt(hdr, l.offset(c.headerLBA)); err != nil {
			return fmt.Errorf("failed to write %s header: %w", c.name, err)
		}
	}

	if options.SkipPMBR {
		return nil
	}

	return writePMBR(w, l.lastLBA, options.MarkPMBRBootable)
}

func writePMBR(w io.WriterAt, lastLBA uint64, bootable bool) error {
	pmbr := make([]byte, 512)
	pmbr[510], pmbr[511] = 0x55, 0xaa

	entry := pmbr[446 : 446+16]

	if bootable {
		entry[0] = 0x80
	}

	copy(entry[1:4], []byte{0x00, 0x02, 0x00}) // CHS start
	entry[4] = 0xee
	copy(entry[5:8], []byte{0xff, 0xff, 0xff}) // CHS end

	binary.LittleEndian.PutUint32(entry[8:12], 1)
	binary.LittleEndian.PutUint32(entry[12:16], uint32(min(lastLBA, math.MaxUint32)))

	if _, err := w.WriteAt(pmbr, 0); err != nil {
		return fmt.Errorf("failed to write protective MBR: %w", err)
	}

	return nil
}
