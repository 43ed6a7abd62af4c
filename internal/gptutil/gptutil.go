// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package gptutil implements helper functions for GPT tables.
package gptutil

import (
	"fmt"

	"github.com/google/uuid"
)

// MinBlockSize is the smallest logical block size a GPT can use.
const MinBlockSize = 512

// ValidBlockSize returns true for power of two block sizes of at least MinBlockSize.
func ValidBlockSize(blockSize uint) bool {
	return blockSize >= MinBlockSize && blockSize&(blockSize-1) == 0
}

// LastLBA returns the last addressable LBA of an image of size bytes.
//
// It returns false if the image doesn't hold a single block.
func LastLBA(size uint64, blockSize uint) (uint64, bool) {
	blocks := size / uint64(blockSize)
	if blocks == 0 {
		return 0, false
	}

	return blocks - 1, true
}

// mixed endian layout: the first three fields are little endian.
var guidOrder = [16]int{3, 2, 1, 0, 5, 4, 7, 6, 8, 9, 10, 11, 12, 13, 14, 15}

// DecodeGUID decodes the 16-byte on-disk GUID representation.
func DecodeGUID(b []byte) (uuid.UUID, error) {
	var u uuid.UUID

	if len(b) != len(u) {
		return uuid.Nil, fmt.Errorf("invalid GUID length %d", len(b))
	}

	for i, j := range guidOrder {
		u[i] = b[j]
	}

	return u, nil
}

// EncodeGUID returns the 16-byte on-disk GUID representation of u.
func EncodeGUID(u uuid.UUID) []byte {
	b := make([]byte, len(u))

	for i, j := range guidOrder {
		b[j] = u[i]
	}

	return b
}
