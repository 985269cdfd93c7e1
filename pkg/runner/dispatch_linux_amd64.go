/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package runner

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/agentfs/sandboxfs/pkg/guestmem"
	"github.com/agentfs/sandboxfs/pkg/syscalls"
	"github.com/agentfs/sandboxfs/pkg/tracer"
)

// dispatch reads the syscall the guest is stopped at and, if it is one
// of the eight families this tree intercepts, decodes its arguments off
// the x86-64 ABI registers (rdi, rsi, rdx, r10, r8, r9) and calls the
// matching handler. Anything else falls through untouched.
func dispatch(ctx context.Context, handlers *syscalls.Handlers, guest *ptraceGuest) (tracer.Outcome, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(guest.pid, &regs); err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "ptrace getregs at syscall-entry")
	}

	switch int64(regs.Orig_rax) {
	case unix.SYS_STATX:
		return handlers.Statx(ctx, guest, decodeStatx(&regs))
	case unix.SYS_NEWFSTATAT:
		return handlers.Newfstatat(ctx, guest, decodeNewfstatat(&regs))
	case unix.SYS_STATFS:
		return handlers.Statfs(ctx, guest, decodeStatfs(&regs))
	case unix.SYS_READLINK:
		return handlers.Readlink(ctx, guest, decodeReadlink(&regs))
	case unix.SYS_READLINKAT:
		return handlers.Readlinkat(ctx, guest, decodeReadlinkat(&regs))
	case unix.SYS_SYMLINK:
		return handlers.Symlink(ctx, guest, decodeSymlink(&regs))
	case unix.SYS_SYMLINKAT:
		return handlers.Symlinkat(ctx, guest, decodeSymlinkat(&regs))
	case unix.SYS_LINKAT:
		return handlers.Linkat(ctx, guest, decodeLinkat(&regs))
	default:
		return tracer.PassThrough(), nil
	}
}

func decodeStatx(regs *unix.PtraceRegs) tracer.StatxArgs {
	return tracer.StatxArgs{
		Dirfd:    int32(regs.Rdi),
		PathAddr: guestmem.Addr(regs.Rsi),
		HasPath:  regs.Rsi != 0,
		Flags:    int32(regs.Rdx),
		Mask:     uint32(regs.R10),
		StatAddr: guestmem.Addr(regs.R8),
	}
}

func decodeNewfstatat(regs *unix.PtraceRegs) tracer.NewfstatatArgs {
	return tracer.NewfstatatArgs{
		Dirfd:    int32(regs.Rdi),
		PathAddr: guestmem.Addr(regs.Rsi),
		HasPath:  regs.Rsi != 0,
		StatAddr: guestmem.Addr(regs.Rdx),
		HasStat:  regs.Rdx != 0,
		Flags:    int32(regs.R10),
	}
}

func decodeStatfs(regs *unix.PtraceRegs) tracer.StatfsArgs {
	return tracer.StatfsArgs{
		PathAddr: guestmem.Addr(regs.Rdi),
		HasPath:  regs.Rdi != 0,
	}
}

func decodeReadlink(regs *unix.PtraceRegs) tracer.ReadlinkArgs {
	return tracer.ReadlinkArgs{
		PathAddr: guestmem.Addr(regs.Rdi),
		HasPath:  regs.Rdi != 0,
		BufAddr:  guestmem.Addr(regs.Rsi),
		HasBuf:   regs.Rsi != 0,
		Bufsize:  int(regs.Rdx),
	}
}

func decodeReadlinkat(regs *unix.PtraceRegs) tracer.ReadlinkatArgs {
	return tracer.ReadlinkatArgs{
		Dirfd:    int32(regs.Rdi),
		PathAddr: guestmem.Addr(regs.Rsi),
		HasPath:  regs.Rsi != 0,
		BufAddr:  guestmem.Addr(regs.Rdx),
		HasBuf:   regs.Rdx != 0,
		BufLen:   int(regs.R10),
	}
}

func decodeSymlink(regs *unix.PtraceRegs) tracer.SymlinkArgs {
	return tracer.SymlinkArgs{
		TargetAddr:   guestmem.Addr(regs.Rdi),
		HasTarget:    regs.Rdi != 0,
		LinkpathAddr: guestmem.Addr(regs.Rsi),
		HasLinkpath:  regs.Rsi != 0,
	}
}

func decodeSymlinkat(regs *unix.PtraceRegs) tracer.SymlinkatArgs {
	return tracer.SymlinkatArgs{
		TargetAddr:   guestmem.Addr(regs.Rdi),
		HasTarget:    regs.Rdi != 0,
		NewDirfd:     int32(regs.Rsi),
		LinkpathAddr: guestmem.Addr(regs.Rdx),
		HasLinkpath:  regs.Rdx != 0,
	}
}

func decodeLinkat(regs *unix.PtraceRegs) tracer.LinkatArgs {
	return tracer.LinkatArgs{
		OldDirfd:    int32(regs.Rdi),
		OldpathAddr: guestmem.Addr(regs.Rsi),
		HasOldpath:  regs.Rsi != 0,
		NewDirfd:    int32(regs.Rdx),
		NewpathAddr: guestmem.Addr(regs.R10),
		HasNewpath:  regs.R10 != 0,
		Flags:       int32(regs.R8),
	}
}

// setRegsForSyscall overwrites regs' syscall number and argument
// registers so the tracee, once resumed, executes sc instead of the
// syscall it originally entered with.
func setRegsForSyscall(regs *unix.PtraceRegs, sc tracer.Syscall) {
	switch v := sc.(type) {
	case tracer.StatxArgs:
		regs.Orig_rax = unix.SYS_STATX
		regs.Rax = unix.SYS_STATX
		regs.Rdi = uint64(uint32(v.Dirfd))
		regs.Rsi = uint64(v.PathAddr)
		regs.Rdx = uint64(uint32(v.Flags))
		regs.R10 = uint64(v.Mask)
		regs.R8 = uint64(v.StatAddr)
	case tracer.NewfstatatArgs:
		regs.Orig_rax = unix.SYS_NEWFSTATAT
		regs.Rax = unix.SYS_NEWFSTATAT
		regs.Rdi = uint64(uint32(v.Dirfd))
		regs.Rsi = uint64(v.PathAddr)
		regs.Rdx = uint64(v.StatAddr)
		regs.R10 = uint64(uint32(v.Flags))
	case tracer.StatfsArgs:
		regs.Orig_rax = unix.SYS_STATFS
		regs.Rax = unix.SYS_STATFS
		regs.Rdi = uint64(v.PathAddr)
	case tracer.ReadlinkArgs:
		regs.Orig_rax = unix.SYS_READLINK
		regs.Rax = unix.SYS_READLINK
		regs.Rdi = uint64(v.PathAddr)
		regs.Rsi = uint64(v.BufAddr)
		regs.Rdx = uint64(v.Bufsize)
	case tracer.ReadlinkatArgs:
		regs.Orig_rax = unix.SYS_READLINKAT
		regs.Rax = unix.SYS_READLINKAT
		regs.Rdi = uint64(uint32(v.Dirfd))
		regs.Rsi = uint64(v.PathAddr)
		regs.Rdx = uint64(v.BufAddr)
		regs.R10 = uint64(v.BufLen)
	case tracer.SymlinkArgs:
		regs.Orig_rax = unix.SYS_SYMLINK
		regs.Rax = unix.SYS_SYMLINK
		regs.Rdi = uint64(v.TargetAddr)
		regs.Rsi = uint64(v.LinkpathAddr)
	case tracer.SymlinkatArgs:
		regs.Orig_rax = unix.SYS_SYMLINKAT
		regs.Rax = unix.SYS_SYMLINKAT
		regs.Rdi = uint64(v.TargetAddr)
		regs.Rsi = uint64(uint32(v.NewDirfd))
		regs.Rdx = uint64(v.LinkpathAddr)
	case tracer.LinkatArgs:
		regs.Orig_rax = unix.SYS_LINKAT
		regs.Rax = unix.SYS_LINKAT
		regs.Rdi = uint64(uint32(v.OldDirfd))
		regs.Rsi = uint64(v.OldpathAddr)
		regs.Rdx = uint64(uint32(v.NewDirfd))
		regs.R10 = uint64(v.NewpathAddr)
		regs.R8 = uint64(uint32(v.Flags))
	}
}

// suppressSyscall makes the kernel skip the pending syscall entirely
// rather than execute it, the standard ptrace trick of setting
// orig_rax to -1.
func suppressSyscall(regs *unix.PtraceRegs) {
	regs.Orig_rax = ^uint64(0)
}

func syscallReturnValue(regs *unix.PtraceRegs) int64 {
	return int64(regs.Rax)
}

func setSyscallReturnValue(regs *unix.PtraceRegs, v int64) {
	regs.Rax = uint64(v)
}
