// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package usererror_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-imagestream/usererror"
)

func TestWrap(t *testing.T) {
	cause := errors.New("invalid footer")

	err := fmt.Errorf("handler: %w", usererror.Wrap("Invalid image", "bad dmg", cause))

	userErr, ok := usererror.As(err)
	require.True(t, ok)

	assert.Equal(t, "Invalid image", userErr.Error())
	assert.Equal(t, "bad dmg", userErr.Description)
	assert.Equal(t, "invalid footer", userErr.Message)
	assert.ErrorIs(t, err, cause)
}

func TestAs(t *testing.T) {
	_, ok := usererror.As(errors.New("plain"))
	assert.False(t, ok)

	userErr, ok := usererror.As(usererror.New("Invalid image", "The image must be a file"))
	require.True(t, ok)
	assert.Empty(t, userErr.Message)
	assert.NoError(t, userErr.Unwrap())
}
