// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package imagestream

import (
	"go.uber.org/zap"

	"github.com/siderolabs/go-imagestream/archive"
	"github.com/siderolabs/go-imagestream/format"
)

// openZip opens the only image in a zip archive.
func openZip(path string, size uint64, options *Options) (*Image, error) {
	extracted, err := archive.ExtractImage(path, format.ImageExtensions())
	if err != nil {
		return nil, err
	}

	options.Logger.Debug("found image in archive", zap.String("path", path), zap.String("entry", extracted.Entry.Name))

	img := &Image{
		Path:             path,
		Extension:        format.LastExtension(extracted.Entry.Name),
		ArchiveExtension: format.LastExtension(path),
		Size: SizeInfo{
			Original: size,
			Final: FinalSize{
				Value: extracted.Entry.Size,
			},
		},
		stream: extracted.Stream,
	}

	if !extracted.Metadata.Empty() {
		img.Archive = extracted.Metadata
	}

	return img, nil
}
