// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package format_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/siderolabs/go-imagestream/format"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer

	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func xzBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer

	w, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func zipBytes(t *testing.T, name string, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer

	w := zip.NewWriter(&buf)
	fw, err := w.Create(name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func TestClassifyBytes(t *testing.T) {
	payload := bytes.Repeat([]byte("raspberrypi"), 1024)

	for _, test := range []struct {
		name     string
		data     []byte
		expected format.Type
	}{
		{
			name:     "empty",
			expected: format.OctetStream,
		},
		{
			name:     "raw",
			data:     payload,
			expected: format.OctetStream,
		},
		{
			name:     "gzip",
			data:     gzipBytes(t, payload),
			expected: format.Gzip,
		},
		{
			name:     "xz",
			data:     xzBytes(t, payload),
			expected: format.XZ,
		},
		{
			name:     "zip",
			data:     zipBytes(t, "raspberrypi.img", payload),
			expected: format.Zip,
		},
		{
			name:     "bzip2",
			data:     []byte("BZh91AY&SY"),
			expected: format.Bzip2,
		},
		{
			name:     "zstd",
			data:     []byte{0x28, 0xb5, 0x2f, 0xfd, 0x04, 0x00},
			expected: format.Zstd,
		},
		{
			name:     "dmg",
			data:     []byte{0x78, 0x01, 0xed, 0xd0},
			expected: format.AppleDiskImage,
		},
		{
			name:     "truncated xz signature",
			data:     []byte{0xfd, '7', 'z'},
			expected: format.OctetStream,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, format.ClassifyBytes(test.data))
		})
	}
}

func TestClassifyShortInputs(t *testing.T) {
	for n := range format.PrefixSize {
		buf := bytes.Repeat([]byte{0x00}, n)

		assert.Equal(t, format.OctetStream, format.ClassifyBytes(buf))
	}
}

func TestArchiveMIMEType(t *testing.T) {
	payload := bytes.Repeat([]byte{0x00, 0x01, 0x02}, 4096)

	for _, test := range []struct {
		name     string
		data     []byte
		expected string
	}{
		{
			name:     "raspberrypi.img.gz",
			data:     gzipBytes(t, payload),
			expected: "application/gzip",
		},
		{
			name:     "raspberrypi.img.xz",
			data:     xzBytes(t, payload),
			expected: "application/x-xz",
		},
		{
			name:     "raspberrypi.zip",
			data:     zipBytes(t, "raspberrypi.img", payload),
			expected: "application/zip",
		},
		{
			name:     "raspberrypi.img",
			data:     payload,
			expected: "application/octet-stream",
		},
		{
			name:     "tiny.img",
			data:     []byte{0x01},
			expected: "application/octet-stream",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			mimeType, err := format.ArchiveMIMEType(writeFile(t, test.name, test.data))
			require.NoError(t, err)

			assert.Equal(t, test.expected, mimeType)
		})
	}
}

func TestClassifyMissingFile(t *testing.T) {
	_, err := format.Classify(filepath.Join(t.TempDir(), "missing.img"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestMIME(t *testing.T) {
	seen := map[string]format.Type{}

	for _, typ := range []format.Type{
		format.OctetStream,
		format.Gzip,
		format.Bzip2,
		format.XZ,
		format.Zip,
		format.AppleDiskImage,
		format.Zstd,
	} {
		prev, dup := seen[typ.MIME()]
		assert.False(t, dup, "%s shares the MIME type with %s", typ, prev)

		seen[typ.MIME()] = typ
		assert.Equal(t, typ.MIME(), typ.String())
	}
	assert.Equal(t, format.DefaultMIMEType, format.Type(42).MIME())
}
