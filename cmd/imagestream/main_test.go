// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-imagestream/format"
	"github.com/siderolabs/go-imagestream/imagestream"
	"github.com/siderolabs/go-imagestream/usererror"
)

const testImage = "../../imagestream/testdata/raspberrypi.img.bz2"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	return out.String(), err
}

func TestFormats(t *testing.T) {
	out, err := run(t, "formats", "--json=true")
	require.NoError(t, err)

	var fileTypes []format.FileType

	require.NoError(t, json.Unmarshal([]byte(out), &fileTypes))
	assert.Equal(t, format.SupportedFileTypes(), fileTypes)
}

func TestInfo(t *testing.T) {
	out, err := run(t, "info", "--json=true", "--concurrency=2", testImage, testImage)
	require.NoError(t, err)

	var results []imagestream.Metadata

	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)

	for _, metadata := range results {
		assert.Equal(t, "img", metadata.Extension)
		assert.Equal(t, "bz2", metadata.ArchiveExtension)
		assert.True(t, metadata.HasMBR)
		assert.False(t, metadata.HasGPT)
		assert.Len(t, metadata.Partitions, 2)
	}

	out, err = run(t, "info", "--json=false", testImage)
	require.NoError(t, err)

	assert.Contains(t, out, "application/x-bzip2")
	assert.Contains(t, out, "EXTENDED")
}

func TestInfoInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.img.gz")
	require.NoError(t, os.WriteFile(path, []byte("definitely not gzip"), 0o644))

	_, err := run(t, "info", "--json=false", path)
	require.Error(t, err)

	uerr, ok := usererror.As(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid image", uerr.Title)
	assert.Contains(t, formatError(err), "Invalid image: There was an error reading \"broken.img.gz\"")
}

func TestExtract(t *testing.T) {
	output := filepath.Join(t.TempDir(), "raspberrypi.img")

	_, err := run(t, "extract", "--force=false", testImage, output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)

	sum := sha256.Sum256(data)

	assert.Len(t, data, 131072)
	assert.Equal(t, "ce0d489758ad189383ce011bd6f8cbc18c698c6d5812b6baf67fbd151e1010be", hex.EncodeToString(sum[:]))

	_, err = run(t, "extract", "--force=false", testImage, output)
	require.ErrorContains(t, err, "already exists")

	_, err = run(t, "extract", "--force=true", testImage, output)
	require.NoError(t, err)
}
