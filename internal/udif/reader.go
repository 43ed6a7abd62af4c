// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package udif

import (
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/klauspost/compress/zlib"
)

// maxChunkSize bounds the decoded size of a single chunk held in memory.
const maxChunkSize = 256 * 1024 * 1024

// span is a chunk with absolute positions.
type span struct {
	Chunk

	// sector is the absolute first sector of the chunk.
	sector uint64

	// offset is the absolute offset of the chunk data in the file.
	offset int64
}

// Reader decodes the image into the sequence of its sectors.
type Reader struct {
	r      io.ReaderAt
	footer *Footer
	tables []*Table
	spans  []span

	next int

	// sector is the next sector to be produced.
	sector uint64

	cur    io.Reader
	closer io.Closer
}

// NewReader reads the footer and the blkx tables of the image.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	footer, err := ReadFooter(r, size)
	if err != nil {
		return nil, err
	}

	tables, err := ReadTables(r, footer)
	if err != nil {
		return nil, err
	}

	reader := &Reader{
		r:      r,
		footer: footer,
		tables: tables,
	}

	for _, table := range tables {
	chunks:
		for _, chunk := range table.Chunks {
			switch chunk.Type {
			case ChunkComment:
				continue
			case ChunkTerminator:
				break chunks
			}

			if chunk.SectorCount == 0 {
				continue
			}

			s := span{
				Chunk:  chunk,
				sector: table.SectorNumber + chunk.SectorNumber,
				offset: int64(footer.DataForkOffset + table.DataOffset + chunk.CompressedOffset),
			}

			if s.sector+s.SectorCount > footer.SectorCount {
				return nil, fmt.Errorf("%w: chunk at sector %d is beyond the end of the image", ErrInvalidImage, s.sector)
			}

			if s.offset < 0 || s.offset+int64(s.CompressedLength) > size {
				return nil, fmt.Errorf("%w: chunk at sector %d is beyond the end of the file", ErrInvalidImage, s.sector)
			}

			reader.spans = append(reader.spans, s)
		}
	}

	slices.SortStableFunc(reader.spans, func(a, b span) int {
		switch {
		case a.sector < b.sector:
			return -1
		case a.sector > b.sector:
			return 1
		default:
			return 0
		}
	})

	for i := 1; i < len(reader.spans); i++ {
		prev := reader.spans[i-1]

		if prev.sector+prev.SectorCount > reader.spans[i].sector {
			return nil, fmt.Errorf("%w: overlapping chunks at sector %d", ErrInvalidImage, reader.spans[i].sector)
		}
	}

	return reader, nil
}

// Footer returns the koly trailer of the image.
func (r *Reader) Footer() *Footer {
	return r.footer
}

// Tables returns the blkx tables of the image.
func (r *Reader) Tables() []*Table {
	return r.tables
}

// Size returns the size of the decoded image.
func (r *Reader) Size() uint64 {
	return r.footer.Size()
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	for {
		if r.cur == nil {
			if err := r.advance(); err != nil {
				return 0, err
			}
		}

		n, err := r.cur.Read(p)
		if errors.Is(err, io.EOF) {
			if closeErr := r.closeCurrent(); closeErr != nil {
				return n, closeErr
			}

			err = nil

			if n == 0 {
				continue
			}
		}

		return n, err
	}
}

// Close releases the decompressor of the current chunk.
//
// The underlying io.ReaderAt is not closed.
func (r *Reader) Close() error {
	return r.closeCurrent()
}

func (r *Reader) closeCurrent() error {
	r.cur = nil

	if r.closer == nil {
		return nil
	}

	err := r.closer.Close()
	r.closer = nil

	return err
}

// advance sets up the reader for the next run of sectors.
func (r *Reader) advance() error {
	if r.sector >= r.footer.SectorCount {
		return io.EOF
	}

	if r.next >= len(r.spans) {
		r.cur = zeroes(r.footer.SectorCount - r.sector)
		r.sector = r.footer.SectorCount

		return nil
	}

	s := r.spans[r.next]

	// gap between the chunks
	if s.sector > r.sector {
		r.cur = zeroes(s.sector - r.sector)
		r.sector = s.sector

		return nil
	}

	r.next++
	r.sector = s.sector + s.SectorCount

	cur, err := r.open(s)
	if err != nil {
		return err
	}

	r.cur = cur

	return nil
}

func (r *Reader) open(s span) (io.Reader, error) {
	size := s.SectorCount * SectorSize
	data := io.NewSectionReader(r.r, s.offset, int64(s.CompressedLength))

	switch s.Type {
	case ChunkZero, ChunkIgnore:
		return zeroes(s.SectorCount), nil
	case ChunkRaw:
		if s.CompressedLength != size {
			return nil, fmt.Errorf("%w: raw chunk at sector %d has %d bytes for %d sectors",
				ErrInvalidImage, s.sector, s.CompressedLength, s.SectorCount)
		}

		return data, nil
	case ChunkZlib:
		zr, err := zlib.NewReader(data)
		if err != nil {
			return nil, fmt.Errorf("%w: zlib chunk at sector %d: %w", ErrInvalidImage, s.sector, err)
		}

		r.closer = zr

		return exactly(zr, size, s.sector), nil
	case ChunkBzip2:
		return exactly(bzip2.NewReader(data), size, s.sector), nil
	case ChunkADC:
		if size > maxChunkSize {
			return nil, fmt.Errorf("%w: ADC chunk at sector %d is too big", ErrInvalidImage, s.sector)
		}

		src := make([]byte, s.CompressedLength)

		if _, err := io.ReadFull(data, src); err != nil {
			return nil, err
		}

		out, err := DecodeADC(src, int(size))
		if err != nil {
			return nil, err
		}

		return exactly(bytes.NewReader(out), size, s.sector), nil
	default:
		return nil, fmt.Errorf("%w: 0x%08x at sector %d", ErrUnsupportedChunk, s.Type, s.sector)
	}
}

func zeroes(sectors uint64) io.Reader {
	return io.LimitReader(zeroReader{}, int64(sectors*SectorSize))
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)

	return len(p), nil
}

// exactReader verifies that the chunk decodes to the expected number of bytes.
type exactReader struct {
	r         io.Reader
	remaining uint64
	sector    uint64
}

func exactly(r io.Reader, size, sector uint64) io.Reader {
	return &exactReader{r: r, remaining: size, sector: sector}
}

func (e *exactReader) Read(p []byte) (int, error) {
	if e.remaining == 0 {
		return 0, io.EOF
	}

	if uint64(len(p)) > e.remaining {
		p = p[:e.remaining]
	}

	n, err := e.r.Read(p)
	e.remaining -= uint64(n)

	if errors.Is(err, io.EOF) {
		if e.remaining > 0 {
			return n, fmt.Errorf("%w: chunk at sector %d is %d bytes short", ErrInvalidImage, e.sector, e.remaining)
		}

		err = nil
	}

	return n, err
}
