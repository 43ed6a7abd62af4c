// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package udif

import (
	"fmt"
)

// DecodeADC decompresses an Apple Data Compression chunk.
//
// The output is preallocated to sizeHint bytes.
func DecodeADC(src []byte, sizeHint int) ([]byte, error) {
	out := make([]byte, 0, sizeHint)

	for i := 0; i < len(src); {
		b := src[i]

		switch {
		case b&0x80 != 0: // literal run
			n := int(b&0x7f) + 1

			if i+1+n > len(src) {
				return nil, fmt.Errorf("%w: ADC literal run beyond the end of input", ErrInvalidImage)
			}

			out = append(out, src[i+1:i+1+n]...)
			i += 1 + n
		case b&0x40 != 0: // three-byte back reference
			if i+3 > len(src) {
				return nil, fmt.Errorf("%w: truncated ADC reference", ErrInvalidImage)
			}

			n := int(b&0x3f) + 4
			offset := int(src[i+1])<<8 | int(src[i+2])

			var err error

			if out, err = copyBack(out, offset, n); err != nil {
				return nil, err
			}

			i += 3
		default: // two-byte back reference
			if i+2 > len(src) {
				return nil, fmt.Errorf("%w: truncated ADC reference", ErrInvalidImage)
			}

			n := int(b&0x3c)>>2 + 3
			offset := int(b&0x03)<<8 | int(src[i+1])

			var err error

			if out, err = copyBack(out, offset, n); err != nil {
				return nil, err
			}

			i += 2
		}
	}

	return out, nil
}

// copyBack appends n bytes starting offset+1 bytes before the end of out, byte by byte as the regions may overlap.
func copyBack(out []byte, offset, n int) ([]byte, error) {
	start := len(out) - offset - 1
	if start < 0 {
		return nil, fmt.Errorf("%w: ADC reference before the start of output", ErrInvalidImage)
	}

	for j := range n {
		out = append(out, out[start+j])
	}

	return out, nil
}

// EncodeADC compresses src into ADC literal runs.
//
// The output is valid ADC, but no back references are used.
func EncodeADC(src []byte) []byte {
	out := make([]byte, 0, len(src)+len(src)/128+1)

	for len(src) > 0 {
		n := min(len(src), 128)

		out = append(out, 0x80|byte(n-1))
		out = append(out, src[:n]...)
		src = src[n:]
	}

	return out
}
