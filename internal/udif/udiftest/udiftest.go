// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package udiftest builds small UDIF images for tests.
package udiftest

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zlib"

	"github.com/siderolabs/go-imagestream/internal/udif"
)

// Chunk is a run of sectors to be encoded.
//
// Data is the decoded content for raw, zlib and ADC chunks (zero-padded to
// the sector count) and the encoded content for any other chunk type.
type Chunk struct {
	Type    uint32
	Sectors uint64
	Data    []byte
}

// Table is a blkx table starting at Sector.
type Table struct {
	Name   string
	Sector uint64
	Chunks []Chunk
}

// Image describes the image to be built.
type Image struct {
	Tables []Table

	// SectorCount defaults to the end of the last table.
	SectorCount uint64
}

// Build encodes the image.
func Build(img Image) ([]byte, error) {
	var (
		dataFork    bytes.Buffer
		tables      []*udif.Table
		sectorCount uint64
	)

	for _, t := range img.Tables {
		table := &udif.Table{
			Name:         t.Name,
			SectorNumber: t.Sector,
			DataOffset:   uint64(dataFork.Len()),
		}

		var sector uint64

		for _, c := range t.Chunks {
			encoded, err := encode(c)
			if err != nil {
				return nil, err
			}

			table.Chunks = append(table.Chunks, udif.Chunk{
				Type:             c.Type,
				SectorNumber:     sector,
				SectorCount:      c.Sectors,
				CompressedOffset: uint64(dataFork.Len()) - table.DataOffset,
				CompressedLength: uint64(len(encoded)),
			})

			dataFork.Write(encoded)

			sector += c.Sectors
		}

		table.Chunks = append(table.Chunks, udif.Chunk{
			Type:             udif.ChunkTerminator,
			SectorNumber:     sector,
			CompressedOffset: uint64(dataFork.Len()) - table.DataOffset,
		})

		table.SectorCount = sector
		tables = append(tables, table)

		sectorCount = max(sectorCount, t.Sector+sector)
	}

	if img.SectorCount > 0 {
		sectorCount = img.SectorCount
	}

	xml, err := udif.MarshalResourceFork(tables)
	if err != nil {
		return nil, err
	}

	footer := udif.Footer{
		Version:        4,
		DataForkOffset: 0,
		DataForkLength: uint64(dataFork.Len()),
		XMLOffset:      uint64(dataFork.Len()),
		XMLLength:      uint64(len(xml)),
		ImageVariant:   1,
		SectorCount:    sectorCount,
	}

	out := bytes.Clone(dataFork.Bytes())
	out = append(out, xml...)
	out = append(out, footer.Marshal()...)

	return out, nil
}

func encode(c Chunk) ([]byte, error) {
	switch c.Type {
	case udif.ChunkZero, udif.ChunkIgnore:
		return nil, nil
	case udif.ChunkRaw:
		return pad(c), nil
	case udif.ChunkADC:
		return udif.EncodeADC(pad(c)), nil
	case udif.ChunkZlib:
		var buf bytes.Buffer

		w, err := zlib.NewWriterLevel(&buf, zlib.BestSpeed)
		if err != nil {
			return nil, err
		}

		if _, err = w.Write(pad(c)); err != nil {
			return nil, err
		}

		if err = w.Close(); err != nil {
			return nil, fmt.Errorf("error compressing chunk: %w", err)
		}

		return buf.Bytes(), nil
	default:
		return c.Data, nil
	}
}

func pad(c Chunk) []byte {
	buf := make([]byte, c.Sectors*udif.SectorSize)
	copy(buf, c.Data)

	return buf
}
