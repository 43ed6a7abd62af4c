// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package ioutil provides IO utility functions.
package ioutil

import (
	"errors"
	"fmt"
	"io"
)

// ByteCountMismatchError is returned when a read returns fewer bytes than requested.
type ByteCountMismatchError struct {
	Offset   int64
	Expected int
	Got      int
}

func (e *ByteCountMismatchError) Error() string {
	return fmt.Sprintf("tried to read %d bytes at %d, but got %d bytes instead", e.Expected, e.Offset, e.Got)
}

// Unwrap makes the error match io.ErrUnexpectedEOF.
func (e *ByteCountMismatchError) Unwrap() error {
	return io.ErrUnexpectedEOF
}

// ReadExactAt reads exactly count bytes at offset.
//
// A short read is reported as *ByteCountMismatchError.
func ReadExactAt(r io.ReaderAt, offset int64, count int) ([]byte, error) {
	buf := make([]byte, count)

	n := 0

	for n < count {
		m, err := r.ReadAt(buf[n:], offset+int64(n))

		n += m

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return nil, err
		}
	}

	if n != count {
		return nil, &ByteCountMismatchError{Offset: offset, Expected: count, Got: n}
	}

	return buf, nil
}

// ReadAtMost reads up to limit bytes from r, or until end of stream, whichever comes first.
//
// Only io.EOF ends the read early, any other error (including io.ErrUnexpectedEOF
// reported by a decompressor for a truncated stream) is returned.
// ReadAtMost never reads more than limit bytes from r.
func ReadAtMost(r io.Reader, limit int) ([]byte, error) {
	buf := make([]byte, limit)
	n := 0

	for n < limit {
		m, err := r.Read(buf[n:])
		n += m

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return nil, err
		}
	}

	return buf[:n], nil
}
