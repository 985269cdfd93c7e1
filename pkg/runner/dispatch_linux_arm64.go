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

// dispatch mirrors dispatch_linux_amd64.go for the aarch64 syscall
// table, which has no newfstatat, readlink, or symlink (guests there
// only ever issue the *at variants, per pkg/syscalls' !arm64 build
// constraints): arguments come off x0..x5, the syscall number off x8.
func dispatch(ctx context.Context, handlers *syscalls.Handlers, guest *ptraceGuest) (tracer.Outcome, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(guest.pid, &regs); err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "ptrace getregs at syscall-entry")
	}

	switch int64(regs.Regs[8]) {
	case unix.SYS_STATX:
		return handlers.Statx(ctx, guest, decodeStatx(&regs))
	case unix.SYS_STATFS:
		return handlers.Statfs(ctx, guest, decodeStatfs(&regs))
	case unix.SYS_READLINKAT:
		return handlers.Readlinkat(ctx, guest, decodeReadlinkat(&regs))
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
		Dirfd:    int32(regs.Regs[0]),
		PathAddr: guestmem.Addr(regs.Regs[1]),
		HasPath:  regs.Regs[1] != 0,
		Flags:    int32(regs.Regs[2]),
		Mask:     uint32(regs.Regs[3]),
		StatAddr: guestmem.Addr(regs.Regs[4]),
	}
}

func decodeStatfs(regs *unix.PtraceRegs) tracer.StatfsArgs {
	return tracer.StatfsArgs{
		PathAddr: guestmem.Addr(regs.Regs[0]),
		HasPath:  regs.Regs[0] != 0,
	}
}

func decodeReadlinkat(regs *unix.PtraceRegs) tracer.ReadlinkatArgs {
	return tracer.ReadlinkatArgs{
		Dirfd:    int32(regs.Regs[0]),
		PathAddr: guestmem.Addr(regs.Regs[1]),
		HasPath:  regs.Regs[1] != 0,
		BufAddr:  guestmem.Addr(regs.Regs[2]),
		HasBuf:   regs.Regs[2] != 0,
		BufLen:   int(regs.Regs[3]),
	}
}

func decodeSymlinkat(regs *unix.PtraceRegs) tracer.SymlinkatArgs {
	return tracer.SymlinkatArgs{
		TargetAddr:   guestmem.Addr(regs.Regs[0]),
		HasTarget:    regs.Regs[0] != 0,
		NewDirfd:     int32(regs.Regs[1]),
		LinkpathAddr: guestmem.Addr(regs.Regs[2]),
		HasLinkpath:  regs.Regs[2] != 0,
	}
}

func decodeLinkat(regs *unix.PtraceRegs) tracer.LinkatArgs {
	return tracer.LinkatArgs{
		OldDirfd:    int32(regs.Regs[0]),
		OldpathAddr: guestmem.Addr(regs.Regs[1]),
		HasOldpath:  regs.Regs[1] != 0,
		NewDirfd:    int32(regs.Regs[2]),
		NewpathAddr: guestmem.Addr(regs.Regs[3]),
		HasNewpath:  regs.Regs[3] != 0,
		Flags:       int32(regs.Regs[4]),
	}
}

// setRegsForSyscall overwrites regs' syscall number (x8) and argument
// registers (x0..x5) so the tracee executes sc once resumed.
//
// On real aarch64 kernels PTRACE_SETREGS alone does not change which
// syscall runs: the kernel latches the syscall number for a stop from
// NT_ARM_SYSTEM_CALL (set via PTRACE_SETREGSET), not from x8, so this
// rewrite is inert there without also issuing that regset write. The
// amd64 path (dispatch_linux_amd64.go) has no equivalent gap, since
// orig_rax is authoritative for the syscall number on that arch.
func setRegsForSyscall(regs *unix.PtraceRegs, sc tracer.Syscall) {
	switch v := sc.(type) {
	case tracer.StatxArgs:
		regs.Regs[8] = unix.SYS_STATX
		regs.Regs[0] = uint64(uint32(v.Dirfd))
		regs.Regs[1] = uint64(v.PathAddr)
		regs.Regs[2] = uint64(uint32(v.Flags))
		regs.Regs[3] = uint64(v.Mask)
		regs.Regs[4] = uint64(v.StatAddr)
	case tracer.StatfsArgs:
		regs.Regs[8] = unix.SYS_STATFS
		regs.Regs[0] = uint64(v.PathAddr)
	case tracer.ReadlinkatArgs:
		regs.Regs[8] = unix.SYS_READLINKAT
		regs.Regs[0] = uint64(uint32(v.Dirfd))
		regs.Regs[1] = uint64(v.PathAddr)
		regs.Regs[2] = uint64(v.BufAddr)
		regs.Regs[3] = uint64(v.BufLen)
	case tracer.SymlinkatArgs:
		regs.Regs[8] = unix.SYS_SYMLINKAT
		regs.Regs[0] = uint64(v.TargetAddr)
		regs.Regs[1] = uint64(uint32(v.NewDirfd))
		regs.Regs[2] = uint64(v.LinkpathAddr)
	case tracer.LinkatArgs:
		regs.Regs[8] = unix.SYS_LINKAT
		regs.Regs[0] = uint64(uint32(v.OldDirfd))
		regs.Regs[1] = uint64(v.OldpathAddr)
		regs.Regs[2] = uint64(uint32(v.NewDirfd))
		regs.Regs[3] = uint64(v.NewpathAddr)
		regs.Regs[4] = uint64(uint32(v.Flags))
	}
}

// suppressSyscall makes the kernel skip the pending syscall entirely:
// aarch64 ptrace has no orig_x0 to overwrite, so an invalid syscall
// number in x8 (-1) is used instead, matching the standard aarch64
// ptrace suppression idiom.
func suppressSyscall(regs *unix.PtraceRegs) {
	regs.Regs[8] = ^uint64(0)
}

func syscallReturnValue(regs *unix.PtraceRegs) int64 {
	return int64(regs.Regs[0])
}

func setSyscallReturnValue(regs *unix.PtraceRegs, v int64) {
	regs.Regs[0] = uint64(v)
}
