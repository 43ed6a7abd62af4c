// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package udif implements read support for Apple disk images (UDIF, dmg).
//
// UDIF images end with a 512-byte "koly" trailer which points at the data fork
// and at the XML property list describing how the data fork chunks map to the
// sectors of the image.
package udif

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/siderolabs/go-imagestream/internal/ioutil"
)

// SectorSize is the sector size of UDIF images.
const SectorSize = 512

// FooterSize is the size of the koly trailer.
const FooterSize = 512

// Common errors.
var (
	ErrInvalidFooter    = errors.New("invalid UDIF footer")
	ErrInvalidImage     = errors.New("invalid UDIF image")
	ErrUnsupportedChunk = errors.New("unsupported UDIF chunk type")
)

var footerMagic = []byte("koly")

// Footer is the koly trailer.
//
// Only the fields needed to read the image are decoded.
type Footer struct {
	Version    uint32
	HeaderSize uint32
	Flags      uint32

	DataForkOffset uint64
	DataForkLength uint64
	RsrcForkOffset uint64
	RsrcForkLength uint64

	XMLOffset uint64
	XMLLength uint64

	ImageVariant uint32
	SectorCount  uint64
}

// Size returns the size of the decoded image in bytes.
func (f *Footer) Size() uint64 {
	return f.SectorCount * SectorSize
}

// ParseFooter decodes the koly trailer.
func ParseFooter(buf []byte) (*Footer, error) {
	if len(buf) != FooterSize {
		return nil, fmt.Errorf("%w: unexpected footer size %d", ErrInvalidFooter, len(buf))
	}

	if !bytes.Equal(buf[:4], footerMagic) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidFooter)
	}

	footer := &Footer{
		Version:        binary.BigEndian.Uint32(buf[4:8]),
		HeaderSize:     binary.BigEndian.Uint32(buf[8:12]),
		Flags:          binary.BigEndian.Uint32(buf[12:16]),
		DataForkOffset: binary.BigEndian.Uint64(buf[24:32]),
		DataForkLength: binary.BigEndian.Uint64(buf[32:40]),
		RsrcForkOffset: binary.BigEndian.Uint64(buf[40:48]),
		RsrcForkLength: binary.BigEndian.Uint64(buf[48:56]),
		XMLOffset:      binary.BigEndian.Uint64(buf[216:224]),
		XMLLength:      binary.BigEndian.Uint64(buf[224:232]),
		ImageVariant:   binary.BigEndian.Uint32(buf[488:492]),
		SectorCount:    binary.BigEndian.Uint64(buf[492:500]),
	}

	if footer.HeaderSize != FooterSize {
		return nil, fmt.Errorf("%w: unexpected header size %d", ErrInvalidFooter, footer.HeaderSize)
	}

	return footer, nil
}

// Marshal encodes the footer as a koly trailer.
func (f *Footer) Marshal() []byte {
	buf := make([]byte, FooterSize)

	copy(buf[:4], footerMagic)
	binary.BigEndian.PutUint32(buf[4:8], f.Version)
	binary.BigEndian.PutUint32(buf[8:12], FooterSize)
	binary.BigEndian.PutUint32(buf[12:16], f.Flags)
	binary.BigEndian.PutUint64(buf[24:32], f.DataForkOffset)
	binary.BigEndian.PutUint64(buf[32:40], f.DataForkLength)
	binary.BigEndian.PutUint64(buf[40:48], f.RsrcForkOffset)
	binary.BigEndian.PutUint64(buf[48:56], f.RsrcForkLength)
	binary.BigEndian.PutUint64(buf[216:224], f.XMLOffset)
	binary.BigEndian.PutUint64(buf[224:232], f.XMLLength)
	binary.BigEndian.PutUint32(buf[488:492], f.ImageVariant)
	binary.BigEndian.PutUint64(buf[492:500], f.SectorCount)

	return buf
}

// ReadFooter reads the koly trailer at the end of r.
func ReadFooter(r io.ReaderAt, size int64) (*Footer, error) {
	if size < FooterSize {
		return nil, fmt.Errorf("%w: file is too small", ErrInvalidFooter)
	}

	buf, err := ioutil.ReadExactAt(r, size-FooterSize, FooterSize)
	if err != nil {
		return nil, err
	}

	footer, err := ParseFooter(buf)
	if err != nil {
		return nil, err
	}

	if footer.XMLOffset+footer.XMLLength > uint64(size) || footer.DataForkOffset+footer.DataForkLength > uint64(size) {
		return nil, fmt.Errorf("%w: fork beyond the end of the file", ErrInvalidFooter)
	}

	return footer, nil
}

// HasFooter returns true if the file at path ends with a koly trailer.
func HasFooter(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}

	defer f.Close() //nolint:errcheck

	st, err := f.Stat()
	if err != nil {
		return false, err
	}

	if st.Size() < FooterSize {
		return false, nil
	}

	buf, err := ioutil.ReadExactAt(f, st.Size()-FooterSize, len(footerMagic))
	if err != nil {
		return false, err
	}

	return bytes.Equal(buf, footerMagic), nil
}
