/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

//go:build !arm64

package syscalls

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/agentfs/sandboxfs/pkg/fdtable"
	"github.com/agentfs/sandboxfs/pkg/guestmem"
	"github.com/agentfs/sandboxfs/pkg/mount"
	"github.com/agentfs/sandboxfs/pkg/tracer"
	"github.com/agentfs/sandboxfs/pkg/vfs/memvfs"
)

func TestNewfstatatServesVirtualMount(t *testing.T) {
	ctx := context.Background()
	backend := memvfs.New()
	require.NoError(t, backend.Symlink(ctx, "/x", "/virt/link"))
	table, err := mount.New([]mount.Entry{{GuestPrefix: "/virt", Backend: backend}})
	require.NoError(t, err)
	h := New(table, fdtable.New())

	guest := newFakeGuest(512, 256, 64)
	pathAddr := guest.mem.PutString(0, "/virt/link")
	statAddr := guestmem.Addr(64)

	outcome, err := h.Newfstatat(ctx, guest, tracer.NewfstatatArgs{
		Dirfd: fdtable.AtFDCWD, PathAddr: pathAddr, HasPath: true,
		StatAddr: statAddr, HasStat: true, Flags: tracer.AtSymlinkNoFollow,
	})
	require.NoError(t, err)
	v, ok := outcome.ResultValue()
	require.True(t, ok)
	assert.Equal(t, int64(0), v)
	assert.Zero(t, guest.injectCalls)
}

func TestNewfstatatNotFoundMapsErrno(t *testing.T) {
	ctx := context.Background()
	backend := memvfs.New()
	table, err := mount.New([]mount.Entry{{GuestPrefix: "/virt", Backend: backend}})
	require.NoError(t, err)
	h := New(table, fdtable.New())

	guest := newFakeGuest(256, 128, 64)
	pathAddr := guest.mem.PutString(0, "/virt/missing")

	outcome, err := h.Newfstatat(ctx, guest, tracer.NewfstatatArgs{
		Dirfd: fdtable.AtFDCWD, PathAddr: pathAddr, HasPath: true,
	})
	require.NoError(t, err)
	v, ok := outcome.ResultValue()
	require.True(t, ok)
	assert.Equal(t, -int64(unix.ENOENT), v)
}
