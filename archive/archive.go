// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package archive extracts images from zip archives.
package archive

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/siderolabs/gen/xslices"

	"github.com/siderolabs/go-imagestream/format"
	"github.com/siderolabs/go-imagestream/usererror"
)

// Entry is a file in the archive.
type Entry struct {
	Name string `json:"name"`
	Size uint64 `json:"size"`
}

// Extracted is the image found in the archive.
type Extracted struct {
	Entry    Entry
	Stream   io.ReadCloser
	Metadata *Metadata
}

func openZip(path string) (*zip.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}

	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	return zr, nil
}

// ListEntries returns the non-empty files of the archive.
func ListEntries(path string) ([]Entry, error) {
	zr, err := openZip(path)
	if err != nil {
		return nil, err
	}

	defer zr.Close() //nolint:errcheck

	files := xslices.Filter(zr.File, func(f *zip.File) bool {
		return !f.FileInfo().IsDir() && f.UncompressedSize64 > 0
	})

	return xslices.Map(files, func(f *zip.File) Entry {
		return Entry{
			Name: f.Name,
			Size: f.UncompressedSize64,
		}
	}), nil
}

// entryReader closes both the entry and the archive.
type entryReader struct {
	io.ReadCloser

	archive io.Closer
}

func (r *entryReader) Close() error {
	return errors.Join(r.ReadCloser.Close(), r.archive.Close())
}

func invalidEntry(name string) error {
	return usererror.New(
		fmt.Sprintf("Invalid entry: %s", name),
		fmt.Sprintf("The archive does not contain %q, or it is not a regular file.", name),
	)
}

// OpenEntry opens the stream of a single entry of the archive.
//
// The entry must be one of entries.
func OpenEntry(path string, entries []Entry, name string) (io.ReadCloser, error) {
	if !slices.ContainsFunc(entries, func(e Entry) bool { return e.Name == name }) {
		return nil, invalidEntry(name)
	}

	zr, err := openZip(path)
	if err != nil {
		return nil, err
	}

	idx := slices.IndexFunc(zr.File, func(f *zip.File) bool { return f.Name == name })
	if idx == -1 {
		zr.Close() //nolint:errcheck

		return nil, invalidEntry(name)
	}

	rc, err := zr.File[idx].Open()
	if err != nil {
		zr.Close() //nolint:errcheck

		return nil, fmt.Errorf("error opening archive entry %q: %w", name, err)
	}

	return &entryReader{ReadCloser: rc, archive: zr}, nil
}

// ExtractImage finds the only image in the archive and opens it.
//
// Images are recognized by the last extension of the entry name.
func ExtractImage(path string, imageExtensions []string) (*Extracted, error) {
	entries, err := ListEntries(path)
	if err != nil {
		return nil, err
	}

	images := xslices.Filter(entries, func(e Entry) bool {
		return slices.Contains(imageExtensions, format.LastExtension(e.Name))
	})

	if len(images) != 1 {
		return nil, usererror.New("Invalid archive image", "The archive image should contain one and only one top image file")
	}

	metadata, err := ReadMetadata(path, entries)
	if err != nil {
		return nil, err
	}

	stream, err := OpenEntry(path, entries, images[0].Name)
	if err != nil {
		return nil, err
	}

	return &Extracted{
		Entry:    images[0],
		Stream:   stream,
		Metadata: metadata,
	}, nil
}
