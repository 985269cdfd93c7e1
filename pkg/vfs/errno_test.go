/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestStatErrno(t *testing.T) {
	assert.Equal(t, int(unix.ENOENT), StatErrno(NotFound))
	assert.Equal(t, int(unix.EACCES), StatErrno(PermissionDenied))
	assert.Equal(t, int(unix.EIO), StatErrno(InvalidArgument))
}

func TestLinkErrnoUsesEPERM(t *testing.T) {
	assert.Equal(t, int(unix.EPERM), LinkErrno(PermissionDenied))
	assert.Equal(t, int(unix.ENOENT), LinkErrno(NotFound))
	assert.Equal(t, int(unix.EEXIST), LinkErrno(AlreadyExists))
}

func TestReadlinkErrnoFallsBackToEINVAL(t *testing.T) {
	assert.Equal(t, int(unix.EINVAL), ReadlinkErrno(IsADirectory))
	assert.Equal(t, int(unix.EACCES), ReadlinkErrno(PermissionDenied))
}

func TestSymlinkErrnoFallsBackToEIO(t *testing.T) {
	assert.Equal(t, int(unix.EIO), SymlinkErrno(IsADirectory))
	assert.Equal(t, int(unix.EACCES), SymlinkErrno(PermissionDenied))
	assert.Equal(t, int(unix.EEXIST), SymlinkErrno(AlreadyExists))
}
