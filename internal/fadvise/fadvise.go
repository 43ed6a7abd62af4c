// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package fadvise hints the kernel about file access patterns.
package fadvise

import "os"

// Sequential advises the kernel that f is going to be read sequentially.
//
// Failures are ignored, the hint is best effort.
func Sequential(f *os.File) {
	sequential(f)
}
