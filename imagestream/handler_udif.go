// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package imagestream

import (
	"errors"
	"os"

	"go.uber.org/zap"

	"github.com/siderolabs/go-imagestream/format"
	"github.com/siderolabs/go-imagestream/internal/udif"
)

// udifStream closes both the decoder and the file.
type udifStream struct {
	*udif.Reader

	file *os.File
}

func (s *udifStream) Close() error {
	return errors.Join(s.Reader.Close(), s.file.Close())
}

// openUDIF opens an Apple disk image.
//
// Chunks are decoded by the stream itself, there is no transform.
func openUDIF(path string, size uint64, options *Options) (*Image, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}

	r, err := udif.NewReader(f, int64(size))
	if err != nil {
		f.Close() //nolint:errcheck

		if errors.Is(err, udif.ErrInvalidFooter) || errors.Is(err, udif.ErrInvalidImage) {
			return nil, invalidImage(path, "Apple Disk Image (dmg)", err)
		}

		return nil, err
	}

	options.Logger.Debug("read UDIF tables", zap.String("path", path), zap.Int("tables", len(r.Tables())))

	return &Image{
		Path:      path,
		Extension: format.LastExtension(path),
		Size: SizeInfo{
			Original: size,
			Final: FinalSize{
				Value: r.Size(),
			},
		},
		stream: &udifStream{Reader: r, file: f},
	}, nil
}
