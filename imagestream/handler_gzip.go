// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package imagestream

import (
	"github.com/klauspost/compress/gzip"

	"github.com/siderolabs/go-imagestream/internal/gzipsize"
)

// openGzip opens a gzip compressed image.
//
// The decompressed size is taken from ISIZE, so it's only an estimation.
func openGzip(path string, size uint64, _ *Options) (*Image, error) {
	isize, err := gzipsize.FromFile(path)
	if err != nil {
		return nil, err
	}

	f, err := openFile(path)
	if err != nil {
		return nil, err
	}

	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close() //nolint:errcheck

		return nil, invalidImage(path, "gzip compressed image", err)
	}

	img := compressedImage(path, size)
	img.Size.Final.Value = uint64(isize)
	img.stream = f
	img.transform = zr

	return img, nil
}
