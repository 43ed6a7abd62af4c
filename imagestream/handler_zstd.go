// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package imagestream

import (
	"errors"
	"io"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// zstdHeaderMaxSize is the maximum size of the zstd frame header.
const zstdHeaderMaxSize = 18

// openZstd opens a zstd compressed image.
//
// The decompressed size is the content size of the first frame, if recorded.
func openZstd(path string, size uint64, options *Options) (*Image, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, zstdHeaderMaxSize)

	n, err := f.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		f.Close() //nolint:errcheck

		return nil, err
	}

	var header zstd.Header

	if err = header.Decode(buf[:n]); err != nil {
		f.Close() //nolint:errcheck

		return nil, invalidImage(path, "zstd compressed image", err)
	}

	dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		f.Close() //nolint:errcheck

		return nil, invalidImage(path, "zstd compressed image", err)
	}

	img := compressedImage(path, size)

	if header.HasFCS {
		img.Size.Final.Value = header.FrameContentSize
	}

	options.Logger.Debug("read zstd frame header", zap.String("path", path), zap.Bool("content_size", header.HasFCS))

	img.stream = f
	img.transform = dec.IOReadCloser()

	return img, nil
}
