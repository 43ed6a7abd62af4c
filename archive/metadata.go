// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/siderolabs/go-imagestream/usererror"
)

// MetadataDir is the directory next to the image holding the archive metadata.
const MetadataDir = ".meta"

// maxMetadataSize bounds metadata files read into memory.
const maxMetadataSize = 16 * 1024 * 1024

// Metadata describes the image shipped in the archive.
type Metadata struct {
	Name            string `json:"name,omitempty"`
	Version         string `json:"version,omitempty"`
	URL             string `json:"url,omitempty"`
	SupportURL      string `json:"supportUrl,omitempty"`
	ReleaseNotesURL string `json:"releaseNotesUrl,omitempty"`
	ChecksumType    string `json:"checksumType,omitempty"`
	Checksum        string `json:"checksum,omitempty"`

	BytesToZeroOutFromTheBeginning *uint64 `json:"bytesToZeroOutFromTheBeginning,omitempty"`
	RecommendedDriveSize           *uint64 `json:"recommendedDriveSize,omitempty"`

	Logo         string `json:"logo,omitempty"`
	BMap         string `json:"bmap,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// Empty returns true if the archive has no metadata.
func (m *Metadata) Empty() bool {
	return m == nil || *m == Metadata{}
}

// manifest is manifest.json.
type manifest struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	URL             string `json:"url"`
	SupportURL      string `json:"supportUrl"`
	ReleaseNotesURL string `json:"releaseNotesUrl"`
	ChecksumType    string `json:"checksumType"`
	Checksum        string `json:"checksum"`

	BytesToZeroOutFromTheBeginning *uint64 `json:"bytesToZeroOutFromTheBeginning"`
	RecommendedDriveSize           *uint64 `json:"recommendedDriveSize"`
}

// metadataEntry finds the entry at the path relative to the top directory of the archive.
func metadataEntry(entries []Entry, name string) (Entry, bool) {
	for _, e := range entries {
		_, rest, ok := strings.Cut(e.Name, "/")
		if ok && rest == MetadataDir+"/"+name {
			return e, true
		}
	}

	return Entry{}, false
}

func readMetadataFile(path string, entries []Entry, name string) (string, error) {
	entry, ok := metadataEntry(entries, name)
	if !ok {
		return "", nil
	}

	rc, err := OpenEntry(path, entries, entry.Name)
	if err != nil {
		return "", err
	}

	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(rc, maxMetadataSize))
	if err != nil {
		return "", fmt.Errorf("error reading %s: %w", entry.Name, err)
	}

	return string(data), nil
}

// ReadMetadata reads the metadata stored in the archive.
//
// Files which are missing leave the fields empty.
func ReadMetadata(path string, entries []Entry) (*Metadata, error) {
	var (
		m   Metadata
		err error
	)

	for _, file := range []struct {
		name string
		dest *string
	}{
		{"logo.svg", &m.Logo},
		{"instructions.markdown", &m.Instructions},
		{"image.bmap", &m.BMap},
	} {
		if *file.dest, err = readMetadataFile(path, entries, file.name); err != nil {
			return nil, err
		}
	}

	manifestData, err := readMetadataFile(path, entries, "manifest.json")
	if err != nil {
		return nil, err
	}

	if manifestData == "" {
		return &m, nil
	}

	var mf manifest

	if err = json.Unmarshal([]byte(manifestData), &mf); err != nil {
		return nil, usererror.Wrap("Invalid archive manifest.json", "The archive manifest.json file is not valid JSON", err)
	}

	m.Name = mf.Name
	m.Version = mf.Version
	m.URL = mf.URL
	m.SupportURL = mf.SupportURL
	m.ReleaseNotesURL = mf.ReleaseNotesURL
	m.ChecksumType = mf.ChecksumType
	m.Checksum = mf.Checksum
	m.BytesToZeroOutFromTheBeginning = mf.BytesToZeroOutFromTheBeginning
	m.RecommendedDriveSize = mf.RecommendedDriveSize

	return &m, nil
}
