// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package format

import (
	"path/filepath"
	"slices"
	"strings"
)

// Extensions returns the lowercase extensions of the file name.
//
// For "path/to/foo.img.gz" it returns ["img", "gz"].
func Extensions(path string) []string {
	parts := strings.Split(filepath.Base(path), ".")

	if len(parts) < 2 {
		return nil
	}

	extensions := make([]string, 0, len(parts)-1)

	for _, part := range parts[1:] {
		extensions = append(extensions, strings.ToLower(part))
	}

	return extensions
}

// LastExtension returns the last extension of the file name, or an empty string.
func LastExtension(path string) string {
	extensions := Extensions(path)

	if len(extensions) == 0 {
		return ""
	}

	return extensions[len(extensions)-1]
}

// PenultimateExtension returns the extension before the last one.
//
// An empty string is returned if there is no such extension or it is not a supported one.
func PenultimateExtension(path string) string {
	extensions := Extensions(path)

	if len(extensions) < 2 {
		return ""
	}

	ext := extensions[len(extensions)-2]

	if !slices.ContainsFunc(supportedFileTypes, func(ft FileType) bool { return ft.Extension == ext }) {
		return ""
	}

	return ext
}
