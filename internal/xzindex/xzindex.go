// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package xzindex reads the indexes of xz files without decompressing them.
package xzindex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/siderolabs/go-imagestream/internal/ioutil"
)

// ErrInvalid is returned for files which are not valid xz files.
var ErrInvalid = errors.New("invalid xz file")

const (
	headerSize = 12
	footerSize = 12

	// indexes bigger than this are rejected.
	maxIndexSize = 16 * 1024 * 1024
)

var (
	headerMagic = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	footerMagic = []byte{'Y', 'Z'}
)

// Block is a single block record of the index.
type Block struct {
	UnpaddedSize     uint64
	UncompressedSize uint64
}

// Stream describes a single xz stream.
type Stream struct {
	// Offset of the stream header in the file.
	Offset int64

	Blocks []Block
}

// UncompressedSize returns the sum of the uncompressed sizes of all blocks of the stream.
func (s Stream) UncompressedSize() uint64 {
	var size uint64

	for _, b := range s.Blocks {
		size += b.UncompressedSize
	}

	return size
}

// Index is the combined index of all streams of the file.
type Index struct {
	// Streams are in the order they appear in the file.
	Streams []Stream
}

// UncompressedSize returns the total uncompressed size of the file.
func (idx *Index) UncompressedSize() uint64 {
	var size uint64

	for _, s := range idx.Streams {
		size += s.UncompressedSize()
	}

	return size
}

// FromFile reads the index of the xz file at path.
func FromFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close() //nolint:errcheck

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("error getting file size: %w", err)
	}

	return Read(f, st.Size())
}

// Read walks the file backwards from the end, reading the index of every stream.
func Read(r io.ReaderAt, size int64) (*Index, error) {
	if size < headerSize+footerSize || size%4 != 0 {
		return nil, fmt.Errorf("%w: unexpected file size %d", ErrInvalid, size)
	}

	var streams []Stream

	pos := size

	for pos > 0 {
		// stream padding
		word, err := ioutil.ReadExactAt(r, pos-4, 4)
		if err != nil {
			return nil, err
		}

		if bytes.Equal(word, []byte{0, 0, 0, 0}) {
			pos -= 4

			continue
		}

		stream, err := readStream(r, pos)
		if err != nil {
			return nil, err
		}

		streams = append(streams, stream)
		pos = stream.Offset
	}

	if len(streams) == 0 {
		return nil, fmt.Errorf("%w: no streams", ErrInvalid)
	}

	// reverse to file order
	for i, j := 0, len(streams)-1; i < j; i, j = i+1, j-1 {
		streams[i], streams[j] = streams[j], streams[i]
	}

	return &Index{Streams: streams}, nil
}

// readStream reads the stream which ends at end.
func readStream(r io.ReaderAt, end int64) (Stream, error) {
	if end < headerSize+footerSize {
		return Stream{}, fmt.Errorf("%w: truncated stream at %d", ErrInvalid, end)
	}

	footer, err := ioutil.ReadExactAt(r, end-footerSize, footerSize)
	if err != nil {
		return Stream{}, err
	}

	if !bytes.Equal(footer[10:12], footerMagic) {
		return Stream{}, fmt.Errorf("%w: missing stream footer magic at %d", ErrInvalid, end-footerSize)
	}

	if crc32.ChecksumIEEE(footer[4:10]) != binary.LittleEndian.Uint32(footer[0:4]) {
		return Stream{}, fmt.Errorf("%w: stream footer checksum mismatch", ErrInvalid)
	}

	indexSize := (int64(binary.LittleEndian.Uint32(footer[4:8])) + 1) * 4
	flags := footer[8:10]

	indexOffset := end - footerSize - indexSize
	if indexSize > maxIndexSize || indexOffset < headerSize {
		return Stream{}, fmt.Errorf("%w: invalid index size %d", ErrInvalid, indexSize)
	}

	indexBuf, err := ioutil.ReadExactAt(r, indexOffset, int(indexSize))
	if err != nil {
		return Stream{}, err
	}

	blocks, err := parseIndex(indexBuf)
	if err != nil {
		return Stream{}, err
	}

	var blocksSize int64

	for _, b := range blocks {
		blocksSize += int64(padded(b.UnpaddedSize))

		if blocksSize < 0 || blocksSize > indexOffset {
			return Stream{}, fmt.Errorf("%w: blocks exceed the file", ErrInvalid)
		}
	}

	headerOffset := indexOffset - blocksSize - headerSize
	if headerOffset < 0 {
		return Stream{}, fmt.Errorf("%w: blocks exceed the file", ErrInvalid)
	}

	header, err := ioutil.ReadExactAt(r, headerOffset, headerSize)
	if err != nil {
		return Stream{}, err
	}

	if !bytes.Equal(header[:6], headerMagic) {
		return Stream{}, fmt.Errorf("%w: missing stream header magic at %d", ErrInvalid, headerOffset)
	}

	if crc32.ChecksumIEEE(header[6:8]) != binary.LittleEndian.Uint32(header[8:12]) {
		return Stream{}, fmt.Errorf("%w: stream header checksum mismatch", ErrInvalid)
	}

	if !bytes.Equal(header[6:8], flags) {
		return Stream{}, fmt.Errorf("%w: stream header and footer flags differ", ErrInvalid)
	}

	return Stream{
		Offset: headerOffset,
		Blocks: blocks,
	}, nil
}

// parseIndex parses the index including the indicator, padding and CRC32.
func parseIndex(buf []byte) ([]Block, error) {
	if len(buf) < 8 || buf[0] != 0 {
		return nil, fmt.Errorf("%w: missing index indicator", ErrInvalid)
	}

	crcOffset := len(buf) - 4

	if crc32.ChecksumIEEE(buf[:crcOffset]) != binary.LittleEndian.Uint32(buf[crcOffset:]) {
		return nil, fmt.Errorf("%w: index checksum mismatch", ErrInvalid)
	}

	r := bytes.NewReader(buf[1:crcOffset])

	count, err := readVLI(r)
	if err != nil {
		return nil, err
	}

	// every record is at least 2 bytes
	if count > uint64(r.Len())/2 {
		return nil, fmt.Errorf("%w: too many index records %d", ErrInvalid, count)
	}

	blocks := make([]Block, 0, count)

	for range count {
		unpadded, err := readVLI(r)
		if err != nil {
			return nil, err
		}

		uncompressed, err := readVLI(r)
		if err != nil {
			return nil, err
		}

		if unpadded == 0 {
			return nil, fmt.Errorf("%w: zero unpadded size", ErrInvalid)
		}

		blocks = append(blocks, Block{UnpaddedSize: unpadded, UncompressedSize: uncompressed})
	}

	// index padding
	if r.Len() > 3 {
		return nil, fmt.Errorf("%w: index has trailing data", ErrInvalid)
	}

	for r.Len() > 0 {
		if b, _ := r.ReadByte(); b != 0 { //nolint:errcheck
			return nil, fmt.Errorf("%w: non-zero index padding", ErrInvalid)
		}
	}

	return blocks, nil
}

// readVLI reads a variable-length integer (up to 63 bits).
func readVLI(r io.ByteReader) (uint64, error) {
	var v uint64

	for i := range 9 {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("%w: truncated index", ErrInvalid)
		}

		v |= uint64(b&0x7f) << (7 * i)

		if b&0x80 == 0 {
			if i > 0 && b == 0 {
				return 0, fmt.Errorf("%w: non-minimal integer encoding", ErrInvalid)
			}

			return v, nil
		}
	}

	return 0, fmt.Errorf("%w: integer overflow", ErrInvalid)
}

func padded(size uint64) uint64 {
	return (size + 3) &^ 3
}
