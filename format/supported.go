// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package format

import (
	"path/filepath"
	"regexp"
	"slices"

	"github.com/siderolabs/gen/xslices"
)

// Kind is a kind of supported file.
type Kind string

// Supported file kinds.
const (
	// KindArchive is a container holding exactly one image.
	KindArchive Kind = "archive"
	// KindCompressed is a compressed image.
	//
	// Compressed extensions are stripped from file names to find the image extension.
	KindCompressed Kind = "compressed"
	// KindImage is a raw image.
	KindImage Kind = "image"
)

// FileType is a supported file extension.
type FileType struct {
	// Extension without the leading dot.
	Extension string `json:"extension"`
	Kind      Kind   `json:"type"`
}

var supportedFileTypes = []FileType{
	{Extension: "zip", Kind: KindArchive},
	{Extension: "etch", Kind: KindArchive},
	{Extension: "gz", Kind: KindCompressed},
	{Extension: "bz2", Kind: KindCompressed},
	{Extension: "xz", Kind: KindCompressed},
	{Extension: "zst", Kind: KindCompressed},
	{Extension: "img", Kind: KindImage},
	{Extension: "iso", Kind: KindImage},
	{Extension: "bin", Kind: KindImage},
	{Extension: "dsk", Kind: KindImage},
	{Extension: "hddimg", Kind: KindImage},
	{Extension: "raw", Kind: KindImage},
	{Extension: "dmg", Kind: KindImage},
	{Extension: "sdcard", Kind: KindImage},
	{Extension: "rpi-sdimg", Kind: KindImage},
}

// SupportedFileTypes returns the registry of supported file extensions.
func SupportedFileTypes() []FileType {
	return slices.Clone(supportedFileTypes)
}

func extensionsOfKind(kind Kind) []string {
	return xslices.Map(
		xslices.Filter(supportedFileTypes, func(ft FileType) bool { return ft.Kind == kind }),
		func(ft FileType) string { return ft.Extension },
	)
}

// ImageExtensions returns the extensions of raw images.
func ImageExtensions() []string {
	return extensionsOfKind(KindImage)
}

// CompressedExtensions returns the extensions of compressed images.
func CompressedExtensions() []string {
	return extensionsOfKind(KindCompressed)
}

// ArchiveExtensions returns the extensions of image archives.
func ArchiveExtensions() []string {
	return extensionsOfKind(KindArchive)
}

// IsSupportedImage returns true if the file name looks like a supported image.
func IsSupportedImage(path string) bool {
	last := LastExtension(path)
	penultimate := PenultimateExtension(path)

	if slices.Contains(ImageExtensions(), last) || slices.Contains(ArchiveExtensions(), last) {
		return true
	}

	if !slices.Contains(CompressedExtensions(), last) {
		return false
	}

	return penultimate == "" || slices.Contains(ImageExtensions(), penultimate)
}

var windowsImageRe = regexp.MustCompile(`(?i)windows|win7|win8|win10|winxp`)

// LooksLikeWindowsImage returns true if the file name suggests a Windows installation image.
func LooksLikeWindowsImage(path string) bool {
	return windowsImageRe.MatchString(filepath.Base(path))
}
