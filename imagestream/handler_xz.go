// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package imagestream

import (
	"errors"
	"io"

	"github.com/ulikunitz/xz"
	"go.uber.org/zap"

	"github.com/siderolabs/go-imagestream/internal/xzindex"
)

// openXZ opens an xz compressed image.
//
// The exact decompressed size is read from the indexes of all streams.
func openXZ(path string, size uint64, options *Options) (*Image, error) {
	idx, err := xzindex.FromFile(path)
	if err != nil {
		if errors.Is(err, xzindex.ErrInvalid) {
			return nil, invalidImage(path, "xz compressed image", err)
		}

		return nil, err
	}

	options.Logger.Debug("read xz index", zap.String("path", path), zap.Int("streams", len(idx.Streams)))

	f, err := openFile(path)
	if err != nil {
		return nil, err
	}

	xr, err := xz.NewReader(f)
	if err != nil {
		f.Close() //nolint:errcheck

		return nil, invalidImage(path, "xz compressed image", err)
	}

	img := compressedImage(path, size)
	img.Size.Final = FinalSize{
		Estimation: false,
		Value:      idx.UncompressedSize(),
	}
	img.stream = f
	img.transform = io.NopCloser(xr)

	return img, nil
}
