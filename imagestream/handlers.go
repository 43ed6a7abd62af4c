// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package imagestream

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/siderolabs/go-imagestream/format"
	"github.com/siderolabs/go-imagestream/internal/fadvise"
	"github.com/siderolabs/go-imagestream/usererror"
)

// handler opens the image of a single format.
//
// size is the size of the file on disk.
type handler func(path string, size uint64, options *Options) (*Image, error)

func handlerFor(typ format.Type) handler {
	switch typ {
	case format.Gzip:
		return openGzip
	case format.Bzip2:
		return openBzip2
	case format.XZ:
		return openXZ
	case format.Zstd:
		return openZstd
	case format.Zip:
		return openZip
	case format.AppleDiskImage:
		return openUDIF
	case format.OctetStream:
		return openRaw
	default:
		return openRaw
	}
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fadvise.Sequential(f)

	return f, nil
}

// invalidImage wraps a parser error into the user-facing error.
//
// Errors coming from the filesystem are returned as is.
func invalidImage(path, container string, err error) error {
	var pathErr *fs.PathError

	if errors.As(err, &pathErr) {
		return err
	}

	return usererror.Wrap(
		"Invalid image",
		fmt.Sprintf(
			"There was an error reading \"%s\". The image does not appear to be a valid %s, or may have the wrong filename extension.\n\nError: %s",
			filepath.Base(path), container, err,
		),
		err,
	)
}

// compressedImage fills in the fields common to compressed images.
func compressedImage(path string, size uint64) *Image {
	return &Image{
		Path:             path,
		Extension:        format.PenultimateExtension(path),
		ArchiveExtension: format.LastExtension(path),
		Size: SizeInfo{
			Original: size,
			Final: FinalSize{
				Estimation: true,
				Value:      size,
			},
		},
	}
}

func openRaw(path string, size uint64, _ *Options) (*Image, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}

	return &Image{
		Path:      path,
		Extension: format.LastExtension(path),
		Size: SizeInfo{
			Original: size,
			Final: FinalSize{
				Value: size,
			},
		},
		stream: f,
	}, nil
}
