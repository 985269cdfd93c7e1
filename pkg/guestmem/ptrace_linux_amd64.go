/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

//go:build linux && amd64

package guestmem

import "golang.org/x/sys/unix"

func stackPointer(regs *unix.PtraceRegs) uintptr {
	return uintptr(regs.Rsp)
}

func setStackPointer(regs *unix.PtraceRegs, sp uintptr) {
	regs.Rsp = uint64(sp)
}
