// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package usererror implements errors caused by invalid user input.
//
// User errors carry a short title and a longer description which are
// meant to be shown to the user unchanged. They are never reported as
// application failures.
package usererror

import "errors"

// Error is an error the user can recover from by changing their input.
type Error struct {
	Title       string
	Description string

	// Message is the raw message of the underlying parser error, if any.
	Message string

	cause error
}

// New creates a new user error.
func New(title, description string) *Error {
	return &Error{
		Title:       title,
		Description: description,
	}
}

// Wrap creates a new user error caused by err.
func Wrap(title, description string, err error) *Error {
	e := New(title, description)

	if err != nil {
		e.Message = err.Error()
		e.cause = err
	}

	return e
}

// Error implements error.
func (e *Error) Error() string {
	return e.Title
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// As returns the user error in the err chain.
func As(err error) (*Error, bool) {
	var e *Error

	if errors.As(err, &e) {
		return e, true
	}

	return nil, false
}
