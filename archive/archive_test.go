// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package archive_test

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/siderolabs/go-pointer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-imagestream/archive"
	"github.com/siderolabs/go-imagestream/format"
	"github.com/siderolabs/go-imagestream/usererror"
)

type zipFile struct {
	name   string
	data   []byte
	method uint16
}

func writeZip(t *testing.T, files ...zipFile) string {
	t.Helper()

	var buf bytes.Buffer

	w := zip.NewWriter(&buf)
	w.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())

	for _, f := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{
			Name:   f.name,
			Method: f.method,
		})
		require.NoError(t, err)

		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "archive.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	return path
}

func TestListEntries(t *testing.T) {
	t.Parallel()

	path := writeZip(t,
		zipFile{name: "raspberrypi/", method: zip.Store},
		zipFile{name: "raspberrypi/empty.txt", method: zip.Store},
		zipFile{name: "raspberrypi/raspberrypi.img", data: bytes.Repeat([]byte{1}, 4096), method: zip.Deflate},
		zipFile{name: "raspberrypi/README", data: []byte("readme"), method: zip.Store},
	)

	entries, err := archive.ListEntries(path)
	require.NoError(t, err)

	assert.Equal(t, []archive.Entry{
		{Name: "raspberrypi/raspberrypi.img", Size: 4096},
		{Name: "raspberrypi/README", Size: 6},
	}, entries)
}

func TestListEntriesNotZip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip file"), 0o644))

	_, err := archive.ListEntries(path)
	require.Error(t, err)
}

func TestOpenEntry(t *testing.T) {
	t.Parallel()

	image := bytes.Repeat([]byte("image"), 10000)

	path := writeZip(t,
		zipFile{name: "deflate.img", data: image, method: zip.Deflate},
		zipFile{name: "zstd.img", data: image, method: zstd.ZipMethodWinZip},
		zipFile{name: "dir/", method: zip.Store},
	)

	entries, err := archive.ListEntries(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	for _, name := range []string{"deflate.img", "zstd.img"} {
		rc, err := archive.OpenEntry(path, entries, name)
		require.NoError(t, err)

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		assert.Equal(t, image, data, name)
	}

	for _, name := range []string{"missing.img", "dir/"} {
		_, err = archive.OpenEntry(path, entries, name)
		require.Error(t, err)

		uerr, ok := usererror.As(err)
		require.True(t, ok)
		assert.Equal(t, "Invalid entry: "+name, uerr.Title)
		assert.Equal(t, fmt.Sprintf("The archive does not contain %q, or it is not a regular file.", name), uerr.Description)
	}
}

func TestExtractImage(t *testing.T) {
	t.Parallel()

	image := bytes.Repeat([]byte{0xaa}, 8192)

	path := writeZip(t,
		zipFile{name: "os/os.img", data: image, method: zip.Deflate},
		zipFile{name: "os/.meta/manifest.json", data: []byte(`{
			"name": "Raspberry Pi OS",
			"version": "1.0.0",
			"url": "https://example.com",
			"checksumType": "md5",
			"checksum": "abc",
			"bytesToZeroOutFromTheBeginning": 512,
			"recommendedDriveSize": 4294967296
		}`), method: zip.Deflate},
		zipFile{name: "os/.meta/logo.svg", data: []byte("<svg/>"), method: zip.Store},
		zipFile{name: "os/.meta/instructions.markdown", data: []byte("# Flash it"), method: zip.Store},
		zipFile{name: "os/.meta/image.bmap", data: []byte("<bmap/>"), method: zip.Store},
	)

	extracted, err := archive.ExtractImage(path, format.ImageExtensions())
	require.NoError(t, err)

	t.Cleanup(func() { extracted.Stream.Close() }) //nolint:errcheck

	assert.Equal(t, archive.Entry{Name: "os/os.img", Size: 8192}, extracted.Entry)

	data, err := io.ReadAll(extracted.Stream)
	require.NoError(t, err)
	assert.Equal(t, image, data)

	assert.Equal(t, &archive.Metadata{
		Name:                           "Raspberry Pi OS",
		Version:                        "1.0.0",
		URL:                            "https://example.com",
		ChecksumType:                   "md5",
		Checksum:                       "abc",
		BytesToZeroOutFromTheBeginning: pointer.To[uint64](512),
		RecommendedDriveSize:           pointer.To[uint64](4294967296),
		Logo:                           "<svg/>",
		BMap:                           "<bmap/>",
		Instructions:                   "# Flash it",
	}, extracted.Metadata)
}

func TestExtractImageNoMetadata(t *testing.T) {
	t.Parallel()

	path := writeZip(t,
		zipFile{name: "image.iso", data: []byte("iso"), method: zip.Store},
		zipFile{name: ".meta/logo.svg", data: []byte("<svg/>"), method: zip.Store},
	)

	extracted, err := archive.ExtractImage(path, format.ImageExtensions())
	require.NoError(t, err)

	require.NoError(t, extracted.Stream.Close())

	assert.True(t, extracted.Metadata.Empty())
}

func TestExtractImageInvalid(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name  string
		files []zipFile

		expectedTitle string
	}{
		{
			name: "no image",
			files: []zipFile{
				{name: "README.md", data: []byte("readme")},
			},
			expectedTitle: "Invalid archive image",
		},
		{
			name: "two images",
			files: []zipFile{
				{name: "a.img", data: []byte("a")},
				{name: "b.iso", data: []byte("b")},
			},
			expectedTitle: "Invalid archive image",
		},
		{
			name: "empty image",
			files: []zipFile{
				{name: "a.img"},
			},
			expectedTitle: "Invalid archive image",
		},
		{
			name: "invalid manifest",
			files: []zipFile{
				{name: "os/os.img", data: []byte("a")},
				{name: "os/.meta/manifest.json", data: []byte("{")},
			},
			expectedTitle: "Invalid archive manifest.json",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			path := writeZip(t, test.files...)

			_, err := archive.ExtractImage(path, format.ImageExtensions())
			require.Error(t, err)

			uerr, ok := usererror.As(err)
			require.True(t, ok)
			assert.Equal(t, test.expectedTitle, uerr.Title)
		})
	}
}
