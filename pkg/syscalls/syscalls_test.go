/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

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
	"github.com/agentfs/sandboxfs/pkg/vfs"
	"github.com/agentfs/sandboxfs/pkg/vfs/memvfs"
)

// fakeGuest is the tracer.Guest double every handler test drives: its
// Inject records the rewritten syscall it was handed and returns a
// canned result, standing in for the real ptrace re-injection.
type fakeGuest struct {
	mem         *guestmem.FakeMemory
	scratch     *guestmem.FakeScratch
	injected    tracer.Syscall
	injectCalls int
	injectValue int64
	injectErr   error
}

func newFakeGuest(memSize int, scratchStart guestmem.Addr, scratchSize int) *fakeGuest {
	return &fakeGuest{
		mem:     guestmem.NewFakeMemory(memSize),
		scratch: guestmem.NewFakeScratch(scratchStart, scratchSize),
	}
}

func (g *fakeGuest) Memory() guestmem.Memory { return g.mem }

func (g *fakeGuest) Stack(context.Context) (guestmem.Scratch, error) {
	return g.scratch, nil
}

func (g *fakeGuest) Inject(_ context.Context, sc tracer.Syscall) (int64, error) {
	g.injected = sc
	g.injectCalls++
	return g.injectValue, g.injectErr
}

func TestStatxVirtualMountReturnsENOSYS(t *testing.T) {
	ctx := context.Background()
	table, err := mount.New([]mount.Entry{
		{GuestPrefix: "/virt", Backend: memvfs.New()},
	})
	require.NoError(t, err)
	h := New(table, fdtable.New())

	guest := newFakeGuest(256, 128, 64)
	pathAddr := guest.mem.PutString(0, "/virt/db")

	outcome, err := h.Statx(ctx, guest, tracer.StatxArgs{
		Dirfd: fdtable.AtFDCWD, PathAddr: pathAddr, HasPath: true,
	})
	require.NoError(t, err)
	v, ok := outcome.ResultValue()
	require.True(t, ok)
	assert.Equal(t, -int64(unix.ENOSYS), v)
	assert.Zero(t, guest.injectCalls)
}

func TestStatxRealMountRewritesPath(t *testing.T) {
	ctx := context.Background()
	h := New(mustRealTable(t, "/data", "/host/data"), fdtable.New())

	guest := newFakeGuest(256, 128, 64)
	pathAddr := guest.mem.PutString(0, "/data/f")
	guest.injectValue = 0

	outcome, err := h.Statx(ctx, guest, tracer.StatxArgs{
		Dirfd: fdtable.AtFDCWD, PathAddr: pathAddr, HasPath: true,
	})
	require.NoError(t, err)
	_, ok := outcome.ResultValue()
	require.True(t, ok)
	assert.Equal(t, 1, guest.injectCalls)

	rewritten, ok := guest.injected.(tracer.StatxArgs)
	require.True(t, ok)
	got, err := guest.mem.ReadPath(rewritten.PathAddr)
	require.NoError(t, err)
	assert.Equal(t, "/host/data/f", got)
}

func TestReadlinkatTruncatesToBufLen(t *testing.T) {
	ctx := context.Background()
	backend := memvfs.New()
	require.NoError(t, backend.Symlink(ctx, "/a/very/long/target", "/virt/link"))
	table, err := mount.New([]mount.Entry{{GuestPrefix: "/virt", Backend: backend}})
	require.NoError(t, err)
	h := New(table, fdtable.New())

	guest := newFakeGuest(256, 128, 64)
	pathAddr := guest.mem.PutString(0, "/virt/link")
	bufAddr := guestmem.Addr(64)

	outcome, err := h.Readlinkat(ctx, guest, tracer.ReadlinkatArgs{
		Dirfd: fdtable.AtFDCWD, PathAddr: pathAddr, HasPath: true,
		BufAddr: bufAddr, HasBuf: true, BufLen: 4,
	})
	require.NoError(t, err)
	v, ok := outcome.ResultValue()
	require.True(t, ok)
	assert.Equal(t, int64(4), v)
	assert.Equal(t, []byte("/a/v"), guest.mem.Bytes(bufAddr, 4))
}

func TestSymlinkatVirtualAlreadyExists(t *testing.T) {
	ctx := context.Background()
	backend := memvfs.New()
	require.NoError(t, backend.Symlink(ctx, "/x", "/virt/link"))
	table, err := mount.New([]mount.Entry{{GuestPrefix: "/virt", Backend: backend}})
	require.NoError(t, err)
	h := New(table, fdtable.New())

	guest := newFakeGuest(256, 128, 64)
	targetAddr := guest.mem.PutString(0, "/y")
	linkAddr := guest.mem.PutString(16, "/virt/link")

	outcome, err := h.Symlinkat(ctx, guest, tracer.SymlinkatArgs{
		TargetAddr: targetAddr, HasTarget: true,
		NewDirfd: fdtable.AtFDCWD, LinkpathAddr: linkAddr, HasLinkpath: true,
	})
	require.NoError(t, err)
	v, ok := outcome.ResultValue()
	require.True(t, ok)
	assert.Equal(t, -int64(unix.EEXIST), v)
}

func TestLinkatTranslatesBothPathsWithOneCommit(t *testing.T) {
	ctx := context.Background()
	table := mustRealTable2(t)
	h := New(table, fdtable.New())

	guest := newFakeGuest(512, 256, 128)
	oldAddr := guest.mem.PutString(0, "/old/a")
	newAddr := guest.mem.PutString(32, "/new/b")
	guest.injectValue = 0

	outcome, err := h.Linkat(ctx, guest, tracer.LinkatArgs{
		OldDirfd: fdtable.AtFDCWD, OldpathAddr: oldAddr, HasOldpath: true,
		NewDirfd: fdtable.AtFDCWD, NewpathAddr: newAddr, HasNewpath: true,
	})
	require.NoError(t, err)
	_, ok := outcome.ResultValue()
	require.True(t, ok)
	require.Equal(t, 1, guest.injectCalls)

	rewritten, ok := guest.injected.(tracer.LinkatArgs)
	require.True(t, ok)
	gotOld, err := guest.mem.ReadPath(rewritten.OldpathAddr)
	require.NoError(t, err)
	gotNew, err := guest.mem.ReadPath(rewritten.NewpathAddr)
	require.NoError(t, err)
	assert.Equal(t, "/host-old/a", gotOld)
	assert.Equal(t, "/host-new/b", gotNew)
}

func TestLinkatCrossMountReturnsEXDEV(t *testing.T) {
	ctx := context.Background()
	table, err := mount.New([]mount.Entry{
		{GuestPrefix: "/virt", Backend: memvfs.New()},
		{GuestPrefix: "/data", Backend: &realStub{}, BackendRoot: "/host-data"},
	})
	require.NoError(t, err)
	h := New(table, fdtable.New())

	guest := newFakeGuest(256, 128, 64)
	oldAddr := guest.mem.PutString(0, "/virt/a")
	newAddr := guest.mem.PutString(32, "/data/b")

	outcome, err := h.Linkat(ctx, guest, tracer.LinkatArgs{
		OldDirfd: fdtable.AtFDCWD, OldpathAddr: oldAddr, HasOldpath: true,
		NewDirfd: fdtable.AtFDCWD, NewpathAddr: newAddr, HasNewpath: true,
	})
	require.NoError(t, err)
	v, ok := outcome.ResultValue()
	require.True(t, ok)
	assert.Equal(t, -int64(unix.EXDEV), v)
	assert.Zero(t, guest.injectCalls)
}

func mustRealTable(t *testing.T, prefix, root string) *mount.Table {
	t.Helper()
	table, err := mount.New([]mount.Entry{{GuestPrefix: prefix, Backend: &realStub{}, BackendRoot: root}})
	require.NoError(t, err)
	return table
}

func mustRealTable2(t *testing.T) *mount.Table {
	t.Helper()
	table, err := mount.New([]mount.Entry{
		{GuestPrefix: "/old", Backend: &realStub{}, BackendRoot: "/host-old"},
		{GuestPrefix: "/new", Backend: &realStub{}, BackendRoot: "/host-new"},
	})
	require.NoError(t, err)
	return table
}

// realStub is a non-virtual VFS used only to populate mount entries
// that redirect to a host path; none of its methods are ever called
// by the handlers under test, since dispatch for a non-virtual entry
// always rewrites and re-injects instead.
type realStub struct{}

func (realStub) IsVirtual() bool { return false }
func (realStub) Stat(context.Context, string) (vfs.StatRecord, error) {
	return vfs.StatRecord{}, nil
}
func (realStub) Lstat(context.Context, string) (vfs.StatRecord, error) {
	return vfs.StatRecord{}, nil
}
func (realStub) Readlink(context.Context, string) (string, error) { return "", nil }
func (realStub) Symlink(context.Context, string, string) error    { return nil }
func (realStub) Link(context.Context, string, string) error       { return nil }
