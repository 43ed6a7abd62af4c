// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mbr_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-imagestream/partitioning/mbr"
)

func TestParse(t *testing.T) {
	t.Parallel()

	buf := make([]byte, mbr.Size)
	binary.LittleEndian.PutUint32(buf[440:444], 0xdeadbeef)

	b := buf[446:462]
	b[0] = 0x80
	b[4] = 0x83
	binary.LittleEndian.PutUint32(b[8:12], 2048)
	binary.LittleEndian.PutUint32(b[12:16], 1024)

	b = buf[478:494]
	b[4] = mbr.TypeExtendedLBA
	binary.LittleEndian.PutUint32(b[8:12], 4096)
	binary.LittleEndian.PutUint32(b[12:16], 2048)

	buf[510], buf[511] = 0x55, 0xaa

	table, err := mbr.Parse(buf)
	require.NoError(t, err)

	assert.EqualValues(t, 0xdeadbeef, table.DiskSignature)
	assert.False(t, table.HasEFIPart())

	used := table.Used()
	require.Len(t, used, 2)

	assert.EqualValues(t, 0x80, used[0].Status)
	assert.False(t, used[0].Extended())
	assert.EqualValues(t, 2048, used[0].FirstLBA)
	assert.EqualValues(t, 3071, used[0].LastLBA())

	assert.True(t, used[1].Extended())
	assert.EqualValues(t, 6143, used[1].LastLBA())

	assert.True(t, table.Partitions[1].IsEmpty())
}

func TestParseProtective(t *testing.T) {
	t.Parallel()

	buf := make([]byte, mbr.Size)
	buf[446+4] = mbr.TypeEFIProtective
	binary.LittleEndian.PutUint32(buf[446+8:446+12], 1)
	binary.LittleEndian.PutUint32(buf[446+12:446+16], 0xffffffff)
	buf[510], buf[511] = 0x55, 0xaa

	table, err := mbr.Parse(buf)
	require.NoError(t, err)

	assert.True(t, table.HasEFIPart())
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	_, err := mbr.Parse(make([]byte, 100))
	require.ErrorIs(t, err, mbr.ErrTooShort)

	_, err = mbr.Parse(make([]byte, mbr.Size))
	require.ErrorIs(t, err, mbr.ErrInvalidSignature)
}
