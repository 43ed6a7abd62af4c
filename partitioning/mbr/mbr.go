// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mbr implements read support for MBR partition tables.
package mbr

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Size is the size of the MBR in bytes.
const Size = 512

const (
	partitionTableOffset = 446
	partitionEntrySize   = 16
	numPartitions        = 4
)

// Partition types with special meaning.
const (
	TypeEmpty         = 0x00
	TypeExtendedCHS   = 0x05
	TypeExtendedLBA   = 0x0f
	TypeExtendedLinux = 0x85
	TypeEFIProtective = 0xee
)

// Common errors.
var (
	ErrTooShort         = errors.New("buffer is too short for MBR")
	ErrInvalidSignature = errors.New("invalid MBR boot signature")
)

// Table is a parsed MBR.
type Table struct {
	// Partitions are the four primary partition slots, including empty ones.
	Partitions [numPartitions]Partition

	// DiskSignature is the 32-bit disk identifier.
	DiskSignature uint32
}

// Partition is a single primary partition entry.
type Partition struct {
	Status   uint8
	Type     uint8
	FirstLBA uint64
	Sectors  uint64
}

// Parse parses the MBR at the start of buf.
func Parse(buf []byte) (*Table, error) {
	if len(buf) < Size {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooShort, len(buf))
	}

	if buf[510] != 0x55 || buf[511] != 0xaa {
		return nil, ErrInvalidSignature
	}

	table := &Table{
		DiskSignature: binary.LittleEndian.Uint32(buf[440:444]),
	}

	for i := range numPartitions {
		b := buf[partitionTableOffset+i*partitionEntrySize : partitionTableOffset+(i+1)*partitionEntrySize]

		table.Partitions[i] = Partition{
			Status:   b[0],
			Type:     b[4],
			FirstLBA: uint64(binary.LittleEndian.Uint32(b[8:12])),
			Sectors:  uint64(binary.LittleEndian.Uint32(b[12:16])),
		}
	}

	return table, nil
}

// HasEFIPart returns true if the MBR is a protective MBR for a GPT.
func (t *Table) HasEFIPart() bool {
	for _, p := range t.Partitions {
		if p.Type == TypeEFIProtective {
			return true
		}
	}

	return false
}

// Used returns the non-empty partition slots.
func (t *Table) Used() []Partition {
	var parts []Partition

	for _, p := range t.Partitions {
		if !p.IsEmpty() {
			parts = append(parts, p)
		}
	}

	return parts
}

// IsEmpty returns true if the slot is unused.
func (p Partition) IsEmpty() bool {
	return p.Type == TypeEmpty || p.Sectors == 0
}

// Extended returns true if the partition is an extended partition container.
func (p Partition) Extended() bool {
	switch p.Type {
	case TypeExtendedCHS, TypeExtendedLBA, TypeExtendedLinux:
		return true
	default:
		return false
	}
}

// LastLBA returns the last LBA of the partition (inclusive).
func (p Partition) LastLBA() uint64 {
	if p.Sectors == 0 {
		return p.FirstLBA
	}

	return p.FirstLBA + p.Sectors - 1
}
