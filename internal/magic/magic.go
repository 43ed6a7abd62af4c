// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package magic identifies file containers by their leading bytes.
package magic

import "bytes"

// Pattern is a byte sequence expected at a fixed offset.
type Pattern struct {
	Bytes  []byte
	Offset int
}

// End returns the prefix length required to evaluate the pattern.
func (p Pattern) End() int {
	return p.Offset + len(p.Bytes)
}

// Match returns true if the prefix contains the pattern.
func (p Pattern) Match(prefix []byte) bool {
	if len(prefix) < p.End() {
		return false
	}

	return bytes.Equal(prefix[p.Offset:p.End()], p.Bytes)
}

// Rule resolves to Result when any of the patterns matches.
type Rule[T any] struct {
	Result   T
	Patterns []Pattern
}

// Table is an ordered list of rules, the first matching rule wins.
type Table[T any] []Rule[T]

// Identify returns the result of the first rule matching the prefix.
func (t Table[T]) Identify(prefix []byte) (T, bool) {
	for _, rule := range t {
		for _, p := range rule.Patterns {
			if p.Match(prefix) {
				return rule.Result, true
			}
		}
	}

	var zero T

	return zero, false
}
