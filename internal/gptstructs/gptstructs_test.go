// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gptstructs_test

import (
	"bytes"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-imagestream/internal/gptstructs"
)

func buildPrefix(sectorSize int) []byte {
	return buildPrefixEntries(sectorSize, gptstructs.NumEntries)
}

func buildPrefixEntries(sectorSize, numEntries int) []byte {
	buf := make([]byte, sectorSize*2+numEntries*gptstructs.ENTRY_SIZE)

	entries := buf[sectorSize*2:]

	entry := gptstructs.Entry(entries[:gptstructs.ENTRY_SIZE])
	entry.PutPartitionTypeGUID(bytes.Repeat([]byte{0x11}, 16))
	entry.PutUniquePartitionGUID(bytes.Repeat([]byte{0x22}, 16))
	entry.PutStartingLBA(2048)
	entry.PutEndingLBA(4095)

	hdr := gptstructs.Header(buf[sectorSize : sectorSize*2])
	hdr.PutSignature(gptstructs.HeaderSignature)
	hdr.PutRevision(0x00010000)
	hdr.PutHeaderSize(gptstructs.HEADER_SIZE)
	hdr.PutMyLBA(1)
	hdr.PutAlternateLBA(8191)
	hdr.PutFirstUsableLBA(34)
	hdr.PutLastUsableLBA(8158)
	hdr.PutPartitionEntriesLBA(2)
	hdr.PutNumPartitionEntries(uint32(numEntries))
	hdr.PutSizeofPartitionEntry(gptstructs.ENTRY_SIZE)
	hdr.PutPartitionEntryArrayCRC32(crc32.ChecksumIEEE(entries))
	hdr.PutHeaderCRC32(hdr.Checksum())

	return buf
}

func TestChecksum(t *testing.T) {
	buf := buildPrefix(512)
	hdr := gptstructs.Header(buf[512:1024])

	before := hdr.Checksum()

	// the checksum field itself doesn't contribute
	hdr.PutHeaderCRC32(0xdeadbeef)
	assert.Equal(t, before, hdr.Checksum())

	// bytes past the header size don't contribute either
	hdr[gptstructs.HEADER_SIZE+1] = 0xff
	assert.Equal(t, before, hdr.Checksum())

	hdr.PutLastUsableLBA(8000)
	assert.NotEqual(t, before, hdr.Checksum())
}

func TestDecode(t *testing.T) {
	buf := buildPrefix(512)

	hdr, entries, err := gptstructs.Decode(buf, 512)
	require.NoError(t, err)
	require.NotNil(t, hdr)

	assert.Len(t, entries, gptstructs.NumEntries)
	assert.EqualValues(t, 2048, entries[0].StartingLBA())
	assert.EqualValues(t, 4095, entries[0].EndingLBA())
	assert.EqualValues(t, 34, hdr.FirstUsableLBA())
}

func TestDecodeLargeEntryArray(t *testing.T) {
	buf := buildPrefixEntries(512, 256)

	_, entries, err := gptstructs.Decode(buf, 512)
	require.NoError(t, err)

	assert.Len(t, entries, 256)
	assert.EqualValues(t, 2048, entries[0].StartingLBA())
}

func TestDecodeInvalid(t *testing.T) {
	for _, test := range []struct {
		name   string
		mutate func([]byte) []byte
		reason string
	}{
		{
			name: "bad signature",
			mutate: func(b []byte) []byte {
				b[512] = 'X'

				return b
			},
			reason: "signature mismatch",
		},
		{
			name: "bad header checksum",
			mutate: func(b []byte) []byte {
				b[512+40]++

				return b
			},
			reason: "header checksum mismatch",
		},
		{
			name: "bad entries checksum",
			mutate: func(b []byte) []byte {
				b[1024+40]++

				return b
			},
			reason: "entries checksum mismatch",
		},
		{
			name: "truncated entries",
			mutate: func(b []byte) []byte {
				return b[:2048]
			},
			reason: "entries end at 17408, beyond the 2048 byte prefix",
		},
		{
			name: "truncated header",
			mutate: func(b []byte) []byte {
				return b[:600]
			},
			reason: "header at offset 512 is beyond the 600 byte prefix",
		},
		{
			name: "no entries",
			mutate: func(b []byte) []byte {
				hdr := gptstructs.Header(b[512:1024])
				hdr.PutNumPartitionEntries(0)
				hdr.PutHeaderCRC32(hdr.Checksum())

				return b
			},
			reason: "no entries",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			buf := test.mutate(buildPrefix(512))

			hdr, _, err := gptstructs.Decode(buf, 512)
			require.Error(t, err)
			assert.Nil(t, hdr)

			var invalid *gptstructs.InvalidError

			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, test.reason, invalid.Reason)
		})
	}
}

func TestDecodeWrongSectorSize(t *testing.T) {
	buf := buildPrefix(512)

	// LBA 1 at 1024 byte sectors points at the entry array
	_, _, err := gptstructs.Decode(buf, 1024)

	var invalid *gptstructs.InvalidError

	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "signature mismatch", invalid.Reason)
}
