/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

//go:build linux && arm64

package guestmem

import "golang.org/x/sys/unix"

func stackPointer(regs *unix.PtraceRegs) uintptr {
	return uintptr(regs.Sp)
}

func setStackPointer(regs *unix.PtraceRegs, sp uintptr) {
	regs.Sp = uint64(sp)
}
