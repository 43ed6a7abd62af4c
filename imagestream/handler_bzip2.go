// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package imagestream

import (
	"bytes"
	"compress/bzip2"
	"errors"
	"io"

	"github.com/siderolabs/go-imagestream/internal/ioutil"
)

var errBzip2Header = errors.New("bzip2 data invalid: bad magic value")

// openBzip2 opens a bzip2 compressed image.
//
// bzip2 doesn't record the uncompressed size, the compressed size is used as the estimation.
func openBzip2(path string, size uint64, _ *Options) (*Image, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}

	header, err := ioutil.ReadExactAt(f, 0, 4)
	if err == nil && (!bytes.Equal(header[:3], []byte("BZh")) || header[3] < '1' || header[3] > '9') {
		err = errBzip2Header
	}

	if err != nil {
		f.Close() //nolint:errcheck

		return nil, invalidImage(path, "bzip2 compressed image", err)
	}

	img := compressedImage(path, size)
	img.stream = f
	img.transform = io.NopCloser(bzip2.NewReader(f))

	return img, nil
}
