// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package gptstructs provides encoded definitions for GPT on-disk structures.
package gptstructs

import "encoding/binary"

// NumEntries is the number of entries in a GPT written by this package.
const NumEntries = 128

// On-disk structure sizes.
const (
	HEADER_SIZE = 92  //nolint:revive,stylecheck
	ENTRY_SIZE  = 128 //nolint:revive,stylecheck
)

// Header is a GPT header.
//
// All fields are little endian.
type Header []byte

// Signature returns the header signature.
func (h Header) Signature() uint64 { return binary.LittleEndian.Uint64(h[0:8]) }

// PutSignature sets the header signature.
func (h Header) PutSignature(v uint64) { binary.LittleEndian.PutUint64(h[0:8], v) }

// Revision returns the header revision.
func (h Header) Revision() uint32 { return binary.LittleEndian.Uint32(h[8:12]) }

// PutRevision sets the header revision.
func (h Header) PutRevision(v uint32) { binary.LittleEndian.PutUint32(h[8:12], v) }

// HeaderSize returns the size of the header.
func (h Header) HeaderSize() uint32 { return binary.LittleEndian.Uint32(h[12:16]) }

// PutHeaderSize sets the size of the header.
func (h Header) PutHeaderSize(v uint32) { binary.LittleEndian.PutUint32(h[12:16], v) }

// HeaderCRC32 returns the header checksum.
func (h Header) HeaderCRC32() uint32 { return binary.LittleEndian.Uint32(h[16:20]) }

// PutHeaderCRC32 sets the header checksum.
func (h Header) PutHeaderCRC32(v uint32) { binary.LittleEndian.PutUint32(h[16:20], v) }

// MyLBA returns the LBA of this header.
func (h Header) MyLBA() uint64 { return binary.LittleEndian.Uint64(h[24:32]) }

// PutMyLBA sets the LBA of this header.
func (h Header) PutMyLBA(v uint64) { binary.LittleEndian.PutUint64(h[24:32], v) }

// AlternateLBA returns the LBA of the other header copy.
func (h Header) AlternateLBA() uint64 { return binary.LittleEndian.Uint64(h[32:40]) }

// PutAlternateLBA sets the LBA of the other header copy.
func (h Header) PutAlternateLBA(v uint64) { binary.LittleEndian.PutUint64(h[32:40], v) }

// FirstUsableLBA returns the first LBA usable by partitions.
func (h Header) FirstUsableLBA() uint64 { return binary.LittleEndian.Uint64(h[40:48]) }

// PutFirstUsableLBA sets the first LBA usable by partitions.
func (h Header) PutFirstUsableLBA(v uint64) { binary.LittleEndian.PutUint64(h[40:48], v) }

// LastUsableLBA returns the last LBA usable by partitions.
func (h Header) LastUsableLBA() uint64 { return binary.LittleEndian.Uint64(h[48:56]) }

// PutLastUsableLBA sets the last LBA usable by partitions.
func (h Header) PutLastUsableLBA(v uint64) { binary.LittleEndian.PutUint64(h[48:56], v) }

// DiskGUID returns the disk GUID (mixed endian).
func (h Header) DiskGUID() []byte { return h[56:72] }

// PutDiskGUID sets the disk GUID (mixed endian).
func (h Header) PutDiskGUID(v []byte) { copy(h[56:72], v) }

// PartitionEntriesLBA returns the starting LBA of the partition entries.
func (h Header) PartitionEntriesLBA() uint64 { return binary.LittleEndian.Uint64(h[72:80]) }

// PutPartitionEntriesLBA sets the starting LBA of the partition entries.
func (h Header) PutPartitionEntriesLBA(v uint64) { binary.LittleEndian.PutUint64(h[72:80], v) }

// NumPartitionEntries returns the number of partition entries.
func (h Header) NumPartitionEntries() uint32 { return binary.LittleEndian.Uint32(h[80:84]) }

// PutNumPartitionEntries sets the number of partition entries.
func (h Header) PutNumPartitionEntries(v uint32) { binary.LittleEndian.PutUint32(h[80:84], v) }

// SizeofPartitionEntry returns the size of a single partition entry.
func (h Header) SizeofPartitionEntry() uint32 { return binary.LittleEndian.Uint32(h[84:88]) }

// PutSizeofPartitionEntry sets the size of a single partition entry.
func (h Header) PutSizeofPartitionEntry(v uint32) { binary.LittleEndian.PutUint32(h[84:88], v) }

// PartitionEntryArrayCRC32 returns the checksum of the partition entries.
func (h Header) PartitionEntryArrayCRC32() uint32 { return binary.LittleEndian.Uint32(h[88:92]) }

// PutPartitionEntryArrayCRC32 sets the checksum of the partition entries.
func (h Header) PutPartitionEntryArrayCRC32(v uint32) { binary.LittleEndian.PutUint32(h[88:92], v) }

// Entry is a GPT partition entry.
type Entry []byte

// PartitionTypeGUID returns the partition type GUID (mixed endian).
func (e Entry) PartitionTypeGUID() []byte { return e[0:16] }

// PutPartitionTypeGUID sets the partition type GUID (mixed endian).
func (e Entry) PutPartitionTypeGUID(v []byte) { copy(e[0:16], v) }

// UniquePartitionGUID returns the partition GUID (mixed endian).
func (e Entry) UniquePartitionGUID() []byte { return e[16:32] }

// PutUniquePartitionGUID sets the partition GUID (mixed endian).
func (e Entry) PutUniquePartitionGUID(v []byte) { copy(e[16:32], v) }

// StartingLBA returns the first LBA of the partition.
func (e Entry) StartingLBA() uint64 { return binary.LittleEndian.Uint64(e[32:40]) }

// PutStartingLBA sets the first LBA of the partition.
func (e Entry) PutStartingLBA(v uint64) { binary.LittleEndian.PutUint64(e[32:40], v) }

// EndingLBA returns the last LBA of the partition (inclusive).
func (e Entry) EndingLBA() uint64 { return binary.LittleEndian.Uint64(e[40:48]) }

// PutEndingLBA sets the last LBA of the partition (inclusive).
func (e Entry) PutEndingLBA(v uint64) { binary.LittleEndian.PutUint64(e[40:48], v) }

// Attributes returns the partition attribute flags.
func (e Entry) Attributes() uint64 { return binary.LittleEndian.Uint64(e[48:56]) }

// PutAttributes sets the partition attribute flags.
func (e Entry) PutAttributes(v uint64) { binary.LittleEndian.PutUint64(e[48:56], v) }

// PartitionName returns the UTF-16LE encoded partition name.
func (e Entry) PartitionName() []byte { return e[56:128] }

// PutPartitionName sets the UTF-16LE encoded partition name.
func (e Entry) PutPartitionName(v []byte) { copy(e[56:128], v) }
