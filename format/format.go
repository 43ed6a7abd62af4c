// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package format detects image container and compression formats.
package format

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/siderolabs/go-imagestream/internal/magic"
)

// Type is a container/compression format of an image file.
//
// The zero value is OctetStream, which is a raw (uncompressed) image.
type Type int

// Supported formats.
const (
	OctetStream Type = iota
	Gzip
	Bzip2
	XZ
	Zip
	AppleDiskImage
	Zstd
)

// DefaultMIMEType is the MIME type of raw images.
const DefaultMIMEType = "application/octet-stream"

// PrefixSize is the number of bytes read from the start of the file to detect the format.
const PrefixSize = 261

var mimeTypes = map[Type]string{
	OctetStream:    DefaultMIMEType,
	Gzip:           "application/gzip",
	Bzip2:          "application/x-bzip2",
	XZ:             "application/x-xz",
	Zip:            "application/zip",
	AppleDiskImage: "application/x-apple-diskimage",
	Zstd:           "application/zstd",
}

// MIME returns the MIME type of the format.
func (t Type) MIME() string {
	if m, ok := mimeTypes[t]; ok {
		return m
	}

	return DefaultMIMEType
}

// String implements fmt.Stringer.
func (t Type) String() string {
	return t.MIME()
}

// signature order matters: the first match wins.
var signatures = magic.Table[Type]{
	{
		Result:   Gzip,
		Patterns: []magic.Pattern{{Bytes: []byte{0x1f, 0x8b, 0x08}}},
	},
	{
		Result:   Bzip2,
		Patterns: []magic.Pattern{{Bytes: []byte("BZh")}},
	},
	{
		Result:   XZ,
		Patterns: []magic.Pattern{{Bytes: []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}}},
	},
	{
		Result: Zip,
		Patterns: []magic.Pattern{
			{Bytes: []byte{'P', 'K', 0x03, 0x04}},
			{Bytes: []byte{'P', 'K', 0x05, 0x06}},
			{Bytes: []byte{'P', 'K', 0x07, 0x08}},
		},
	},
	{
		Result:   Zstd,
		Patterns: []magic.Pattern{{Bytes: []byte{0x28, 0xb5, 0x2f, 0xfd}}},
	},
	{
		// UDIF images usually start with a zlib-compressed chunk.
		Result:   AppleDiskImage,
		Patterns: []magic.Pattern{{Bytes: []byte{0x78, 0x01}}},
	},
}

// ClassifyBytes detects the format from the first bytes of a file.
//
// Any buffer which doesn't match a known signature (including short ones) is OctetStream.
func ClassifyBytes(buf []byte) Type {
	if len(buf) > PrefixSize {
		buf = buf[:PrefixSize]
	}

	if typ, ok := signatures.Identify(buf); ok {
		return typ
	}

	return OctetStream
}

// Classify detects the format of the file at path.
//
// Only I/O errors are returned, an unknown format is OctetStream.
func Classify(path string) (Type, error) {
	f, err := os.Open(path)
	if err != nil {
		return OctetStream, err
	}

	defer f.Close() //nolint:errcheck

	buf := make([]byte, PrefixSize)

	n, err := f.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return OctetStream, fmt.Errorf("error reading format signature: %w", err)
	}

	return ClassifyBytes(buf[:n]), nil
}

// ArchiveMIMEType returns the MIME type of the file at path.
func ArchiveMIMEType(path string) (string, error) {
	t, err := Classify(path)
	if err != nil {
		return "", err
	}

	return t.MIME(), nil
}
