/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package vfs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, NotFound, KindOf(NewError(NotFound, nil)))
	assert.Equal(t, IoError, KindOf(errors.New("not a vfs error")))
	assert.Equal(t, IoError, KindOf(nil))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(IoError, cause)
	assert.Same(t, cause, errors.Unwrap(err))
	assert.Contains(t, err.Error(), "boom")
}
