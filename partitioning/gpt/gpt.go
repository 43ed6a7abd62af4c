// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package gpt implements read support for GPT partition tables found in image prefixes.
package gpt

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"

	"github.com/siderolabs/go-imagestream/internal/gptstructs"
	"github.com/siderolabs/go-imagestream/internal/gptutil"
)

// ErrNotFound is returned when no valid GPT header is found.
var ErrNotFound = errors.New("no GPT header found")

// Table is a GPT partition table.
type Table struct {
	// Partitions with zero type GUID are skipped.
	// Entries outside of the usable LBA range are kept, see Table.InUsableRange.
	Partitions []Partition

	DiskGUID uuid.UUID

	FirstUsableLBA uint64
	LastUsableLBA  uint64

	BlockSize uint
}

// Partition is a single partition entry in GPT.
type Partition struct {
	Name string

	TypeGUID uuid.UUID
	PartGUID uuid.UUID

	FirstLBA uint64
	LastLBA  uint64

	Flags uint64

	// Index is the 1-based index of the entry in the partition array.
	Index uint
}

// partition names are UTF-16LE without BOM.
var nameEncoding = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Parse reads the primary GPT from the image prefix in buf assuming the specified block size.
//
// The header is expected at LBA 1 and the partition entries must be fully contained in buf.
// Nothing beyond buf is verified, so a table written for a larger disk is still found.
// Any prefix without a valid GPT fails with an error wrapping ErrNotFound.
func Parse(buf []byte, blockSize uint) (*Table, error) {
	if !gptutil.ValidBlockSize(blockSize) {
		return nil, fmt.Errorf("invalid block size %d", blockSize)
	}

	hdr, entries, err := gptstructs.Decode(buf, blockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	diskGUID, err := gptutil.DecodeGUID(hdr.DiskGUID())
	if err != nil {
		return nil, err
	}

	t := &Table{
		DiskGUID:       diskGUID,
		FirstUsableLBA: hdr.FirstUsableLBA(),
		LastUsableLBA:  hdr.LastUsableLBA(),
		BlockSize:      blockSize,
	}

	decoder := nameEncoding.NewDecoder()

	for idx, entry := range entries {
		typeGUID, err := gptutil.DecodeGUID(entry.PartitionTypeGUID())
		if err != nil {
			return nil, err
		}

		if typeGUID == uuid.Nil {
			continue
		}

		partGUID, err := gptutil.DecodeGUID(entry.UniquePartitionGUID())
		if err != nil {
			return nil, err
		}

		name, err := decoder.Bytes(entry.PartitionName())
		if err != nil {
			return nil, fmt.Errorf("error decoding name of partition %d: %w", idx+1, err)
		}

		t.Partitions = append(t.Partitions, Partition{
			Name:     string(bytes.TrimRight(name, "\x00")),
			TypeGUID: typeGUID,
			PartGUID: partGUID,
			FirstLBA: entry.StartingLBA(),
			LastLBA:  entry.EndingLBA(),
			Flags:    entry.Attributes(),
			Index:    uint(idx + 1),
		})
	}

	return t, nil
}

// InUsableRange returns true if the partition lies within the usable LBA range of the table.
func (t *Table) InUsableRange(p Partition) bool {
	return p.FirstLBA >= t.FirstUsableLBA && p.LastLBA <= t.LastUsableLBA && p.FirstLBA <= p.LastLBA
}
