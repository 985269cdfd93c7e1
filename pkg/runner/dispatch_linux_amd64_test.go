/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/agentfs/sandboxfs/pkg/guestmem"
	"github.com/agentfs/sandboxfs/pkg/tracer"
)

func TestDecodeStatxReadsArgRegisters(t *testing.T) {
	regs := unix.PtraceRegs{Rdi: 10, Rsi: 0x1000, Rdx: 0x100, R10: 0x7ff, R8: 0x2000}
	args := decodeStatx(&regs)
	assert.Equal(t, int32(10), args.Dirfd)
	assert.Equal(t, guestmem.Addr(0x1000), args.PathAddr)
	assert.True(t, args.HasPath)
	assert.Equal(t, int32(0x100), args.Flags)
	assert.Equal(t, uint32(0x7ff), args.Mask)
	assert.Equal(t, guestmem.Addr(0x2000), args.StatAddr)
}

func TestDecodeStatxNilPathAddr(t *testing.T) {
	regs := unix.PtraceRegs{Rdi: 10, Rsi: 0}
	args := decodeStatx(&regs)
	assert.False(t, args.HasPath)
}

func TestDecodeReadlinkatReadsArgRegisters(t *testing.T) {
	regs := unix.PtraceRegs{Rdi: 4, Rsi: 0x3000, Rdx: 0x4000, R10: 256}
	args := decodeReadlinkat(&regs)
	assert.Equal(t, int32(4), args.Dirfd)
	assert.Equal(t, guestmem.Addr(0x3000), args.PathAddr)
	assert.Equal(t, guestmem.Addr(0x4000), args.BufAddr)
	assert.Equal(t, 256, args.BufLen)
}

func TestDecodeLinkatReadsArgRegisters(t *testing.T) {
	regs := unix.PtraceRegs{Rdi: 1, Rsi: 0x10, Rdx: 2, R10: 0x20, R8: 1}
	args := decodeLinkat(&regs)
	assert.Equal(t, int32(1), args.OldDirfd)
	assert.Equal(t, guestmem.Addr(0x10), args.OldpathAddr)
	assert.Equal(t, int32(2), args.NewDirfd)
	assert.Equal(t, guestmem.Addr(0x20), args.NewpathAddr)
	assert.Equal(t, int32(1), args.Flags)
}

func TestSetRegsForSyscallRoundTripsStatfs(t *testing.T) {
	var regs unix.PtraceRegs
	setRegsForSyscall(&regs, tracer.StatfsArgs{PathAddr: 0x5000})
	assert.Equal(t, uint64(unix.SYS_STATFS), regs.Orig_rax)
	assert.Equal(t, uint64(unix.SYS_STATFS), regs.Rax)
	assert.Equal(t, uint64(0x5000), regs.Rdi)
	assert.Equal(t, guestmem.Addr(0x5000), decodeStatfs(&regs).PathAddr)
}

func TestSetRegsForSyscallRoundTripsSymlinkat(t *testing.T) {
	var regs unix.PtraceRegs
	setRegsForSyscall(&regs, tracer.SymlinkatArgs{TargetAddr: 1, NewDirfd: 3, LinkpathAddr: 2})
	assert.Equal(t, uint64(unix.SYS_SYMLINKAT), regs.Orig_rax)
	assert.Equal(t, uint64(1), regs.Rdi)
	assert.Equal(t, uint64(3), regs.Rsi)
	assert.Equal(t, uint64(2), regs.Rdx)
	assert.Equal(t, tracer.SymlinkatArgs{TargetAddr: 1, HasTarget: true, NewDirfd: 3, LinkpathAddr: 2, HasLinkpath: true}, decodeSymlinkat(&regs))
}

func TestSuppressAndSetSyscallReturnValue(t *testing.T) {
	var regs unix.PtraceRegs
	regs.Orig_rax = unix.SYS_STATX
	suppressSyscall(&regs)
	assert.Equal(t, ^uint64(0), regs.Orig_rax)

	setSyscallReturnValue(&regs, -2)
	assert.Equal(t, int64(-2), syscallReturnValue(&regs))
}
