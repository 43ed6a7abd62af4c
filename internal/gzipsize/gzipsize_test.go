// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gzipsize_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-imagestream/internal/gzipsize"
	"github.com/siderolabs/go-imagestream/internal/ioutil"
)

func TestFromFile(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	w := gzip.NewWriter(&buf)

	_, err := w.Write(bytes.Repeat([]byte("imagestream"), 1000))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "image.img.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	size, err := gzipsize.FromFile(path)
	require.NoError(t, err)

	assert.EqualValues(t, 11000, size)
}

func TestFromFileShort(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "short.gz")
	require.NoError(t, os.WriteFile(path, []byte{0x1f, 0x8b}, 0o644))

	_, err := gzipsize.FromFile(path)
	require.Error(t, err)

	var mismatch *ioutil.ByteCountMismatchError

	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Got)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFromFileMissing(t *testing.T) {
	t.Parallel()

	_, err := gzipsize.FromFile(filepath.Join(t.TempDir(), "missing.gz"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
