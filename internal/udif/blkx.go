// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package udif

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"howett.net/plist"

	"github.com/siderolabs/go-imagestream/internal/ioutil"
)

// Chunk types.
const (
	ChunkZero       uint32 = 0x00000000
	ChunkRaw        uint32 = 0x00000001
	ChunkIgnore     uint32 = 0x00000002
	ChunkADC        uint32 = 0x80000004
	ChunkZlib       uint32 = 0x80000005
	ChunkBzip2      uint32 = 0x80000006
	ChunkLZFSE      uint32 = 0x80000007
	ChunkLZMA       uint32 = 0x80000008
	ChunkComment    uint32 = 0x7ffffffe
	ChunkTerminator uint32 = 0xffffffff
)

const (
	tableHeaderSize = 204
	chunkSize       = 40

	// maxXMLLength bounds the property list read into memory.
	maxXMLLength = 64 * 1024 * 1024
)

var tableMagic = []byte("mish")

// Chunk maps a run of sectors to a region of the data fork.
type Chunk struct {
	Type    uint32
	Comment uint32

	// SectorNumber is relative to the owning table.
	SectorNumber uint64
	SectorCount  uint64

	// CompressedOffset is relative to the data offset of the table.
	CompressedOffset uint64
	CompressedLength uint64
}

// Table is a decoded blkx (mish) table.
type Table struct {
	Name string

	SectorNumber uint64
	SectorCount  uint64
	DataOffset   uint64

	BuffersNeeded uint32

	Chunks []Chunk
}

type resourceFork struct {
	ResourceFork struct {
		Blkx []blkxResource `plist:"blkx"`
	} `plist:"resource-fork"`
}

type blkxResource struct {
	Attributes string `plist:"Attributes"`
	Data       []byte `plist:"Data"`
	ID         string `plist:"ID"`
	Name       string `plist:"Name"`
}

// ParseTable decodes a mish table.
func ParseTable(buf []byte) (*Table, error) {
	if len(buf) < tableHeaderSize {
		return nil, fmt.Errorf("%w: blkx table is too short", ErrInvalidImage)
	}

	if !bytes.Equal(buf[:4], tableMagic) {
		return nil, fmt.Errorf("%w: blkx table signature mismatch", ErrInvalidImage)
	}

	table := &Table{
		SectorNumber:  binary.BigEndian.Uint64(buf[8:16]),
		SectorCount:   binary.BigEndian.Uint64(buf[16:24]),
		DataOffset:    binary.BigEndian.Uint64(buf[24:32]),
		BuffersNeeded: binary.BigEndian.Uint32(buf[32:36]),
	}

	numChunks := int(binary.BigEndian.Uint32(buf[200:204]))

	if len(buf) < tableHeaderSize+numChunks*chunkSize {
		return nil, fmt.Errorf("%w: blkx table declares %d chunks, but has space for %d",
			ErrInvalidImage, numChunks, (len(buf)-tableHeaderSize)/chunkSize)
	}

	table.Chunks = make([]Chunk, 0, numChunks)

	for i := range numChunks {
		b := buf[tableHeaderSize+i*chunkSize : tableHeaderSize+(i+1)*chunkSize]

		table.Chunks = append(table.Chunks, Chunk{
			Type:             binary.BigEndian.Uint32(b[0:4]),
			Comment:          binary.BigEndian.Uint32(b[4:8]),
			SectorNumber:     binary.BigEndian.Uint64(b[8:16]),
			SectorCount:      binary.BigEndian.Uint64(b[16:24]),
			CompressedOffset: binary.BigEndian.Uint64(b[24:32]),
			CompressedLength: binary.BigEndian.Uint64(b[32:40]),
		})
	}

	return table, nil
}

// Marshal encodes the table as a mish table.
func (t *Table) Marshal() []byte {
	buf := make([]byte, tableHeaderSize+len(t.Chunks)*chunkSize)

	copy(buf[:4], tableMagic)
	binary.BigEndian.PutUint32(buf[4:8], 1)
	binary.BigEndian.PutUint64(buf[8:16], t.SectorNumber)
	binary.BigEndian.PutUint64(buf[16:24], t.SectorCount)
	binary.BigEndian.PutUint64(buf[24:32], t.DataOffset)
	binary.BigEndian.PutUint32(buf[32:36], t.BuffersNeeded)
	binary.BigEndian.PutUint32(buf[200:204], uint32(len(t.Chunks)))

	for i, chunk := range t.Chunks {
		b := buf[tableHeaderSize+i*chunkSize : tableHeaderSize+(i+1)*chunkSize]

		binary.BigEndian.PutUint32(b[0:4], chunk.Type)
		binary.BigEndian.PutUint32(b[4:8], chunk.Comment)
		binary.BigEndian.PutUint64(b[8:16], chunk.SectorNumber)
		binary.BigEndian.PutUint64(b[16:24], chunk.SectorCount)
		binary.BigEndian.PutUint64(b[24:32], chunk.CompressedOffset)
		binary.BigEndian.PutUint64(b[32:40], chunk.CompressedLength)
	}

	return buf
}

// ReadTables reads the blkx tables from the property list the footer points to.
func ReadTables(r io.ReaderAt, footer *Footer) ([]*Table, error) {
	if footer.XMLLength == 0 {
		return nil, fmt.Errorf("%w: no property list", ErrInvalidImage)
	}

	if footer.XMLLength > maxXMLLength {
		return nil, fmt.Errorf("%w: property list is too big (%d bytes)", ErrInvalidImage, footer.XMLLength)
	}

	data, err := ioutil.ReadExactAt(r, int64(footer.XMLOffset), int(footer.XMLLength))
	if err != nil {
		return nil, err
	}

	var fork resourceFork

	if _, err = plist.Unmarshal(data, &fork); err != nil {
		return nil, fmt.Errorf("%w: error parsing property list: %w", ErrInvalidImage, err)
	}

	if len(fork.ResourceFork.Blkx) == 0 {
		return nil, fmt.Errorf("%w: no blkx tables", ErrInvalidImage)
	}

	tables := make([]*Table, 0, len(fork.ResourceFork.Blkx))

	for _, res := range fork.ResourceFork.Blkx {
		table, err := ParseTable(res.Data)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", res.Name, err)
		}

		table.Name = res.Name

		tables = append(tables, table)
	}

	return tables, nil
}

// MarshalResourceFork encodes the tables as the XML property list.
func MarshalResourceFork(tables []*Table) ([]byte, error) {
	var fork resourceFork

	for i, table := range tables {
		fork.ResourceFork.Blkx = append(fork.ResourceFork.Blkx, blkxResource{
			Attributes: "0x0050",
			Data:       table.Marshal(),
			ID:         strconv.Itoa(i - 1),
			Name:       table.Name,
		})
	}

	return plist.MarshalIndent(fork, plist.XMLFormat, "\t")
}
