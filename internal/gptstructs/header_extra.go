// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gptstructs

import (
	"fmt"
	"hash/crc32"
)

// HeaderSignature is the signature of the GPT header.
const HeaderSignature = 0x5452415020494645 // "EFI PART"

// HeaderLBA is the LBA of the primary GPT header.
const HeaderLBA = 1

// InvalidError describes why the prefix does not hold a usable GPT.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return "invalid GPT: " + e.Reason
}

func invalid(format string, args ...any) error {
	return &InvalidError{Reason: fmt.Sprintf(format, args...)}
}

// Checksum returns the CRC32 of the header with the checksum field zeroed.
func (h Header) Checksum() uint32 {
	crc := crc32.NewIEEE()

	crc.Write(h[:16])            //nolint:errcheck
	crc.Write(make([]byte, 4))   //nolint:errcheck
	crc.Write(h[20:HEADER_SIZE]) //nolint:errcheck

	return crc.Sum32()
}

// Decode validates the primary GPT header in the image prefix and returns it with its entries.
//
// The header and the whole entry array must be contained in prefix.
// Every validation failure is reported as *InvalidError.
func Decode(prefix []byte, blockSize uint) (Header, []Entry, error) {
	headerOffset := uint64(HeaderLBA) * uint64(blockSize)

	if uint64(len(prefix)) < headerOffset+uint64(blockSize) {
		return nil, nil, invalid("header at offset %d is beyond the %d byte prefix", headerOffset, len(prefix))
	}

	hdr := Header(prefix[headerOffset : headerOffset+uint64(blockSize)])

	if hdr.Signature() != HeaderSignature {
		return nil, nil, invalid("signature mismatch")
	}

	if size := hdr.HeaderSize(); size < HEADER_SIZE || uint(size) > blockSize {
		return nil, nil, invalid("header size %d", size)
	}

	if hdr.HeaderCRC32() != hdr.Checksum() {
		return nil, nil, invalid("header checksum mismatch")
	}

	if hdr.MyLBA() != HeaderLBA {
		return nil, nil, invalid("header LBA %d", hdr.MyLBA())
	}

	first, last := hdr.FirstUsableLBA(), hdr.LastUsableLBA()

	switch {
	case last < first:
		return nil, nil, invalid("usable range %d-%d is reversed", first, last)
	case first <= HeaderLBA:
		return nil, nil, invalid("header is inside the usable range %d-%d", first, last)
	}

	if hdr.SizeofPartitionEntry() != ENTRY_SIZE {
		return nil, nil, invalid("entry size %d", hdr.SizeofPartitionEntry())
	}

	count := hdr.NumPartitionEntries()
	if count == 0 {
		return nil, nil, invalid("no entries")
	}

	entriesLBA := hdr.PartitionEntriesLBA()
	if entriesLBA > uint64(len(prefix))/uint64(blockSize) {
		return nil, nil, invalid("entries LBA %d is beyond the prefix", entriesLBA)
	}

	entriesOffset := entriesLBA * uint64(blockSize)
	entriesEnd := entriesOffset + uint64(count)*ENTRY_SIZE

	if entriesEnd > uint64(len(prefix)) {
		return nil, nil, invalid("entries end at %d, beyond the %d byte prefix", entriesEnd, len(prefix))
	}

	array := prefix[entriesOffset:entriesEnd]

	if crc32.ChecksumIEEE(array) != hdr.PartitionEntryArrayCRC32() {
		return nil, nil, invalid("entries checksum mismatch")
	}

	entries := make([]Entry, count)
	for i := range entries {
		entries[i] = Entry(array[i*ENTRY_SIZE : (i+1)*ENTRY_SIZE])
	}

	return hdr, entries, nil
}
