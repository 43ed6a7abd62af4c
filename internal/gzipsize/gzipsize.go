// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package gzipsize reads the uncompressed size recorded in the gzip trailer.
//
// ISIZE is the size of the last member modulo 2^32, so it is only an estimation
// for multi-member files and for images bigger than 4 GiB.
package gzipsize

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/siderolabs/go-imagestream/internal/ioutil"
)

// ISIZESize is the size of the ISIZE trailer field.
const ISIZESize = 4

// FromFile returns the ISIZE field of the gzip file at path.
func FromFile(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}

	defer f.Close() //nolint:errcheck

	st, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("error getting file size: %w", err)
	}

	offset := max(st.Size()-ISIZESize, 0)

	buf, err := ioutil.ReadExactAt(f, offset, ISIZESize)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(buf), nil
}
