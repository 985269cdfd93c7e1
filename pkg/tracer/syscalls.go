/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package tracer

import "github.com/agentfs/sandboxfs/pkg/guestmem"

// AtSymlinkNoFollow mirrors Linux's AT_SYMLINK_NOFOLLOW; it is the only
// newfstatat flag bit the CORE needs to interpret (it distinguishes
// lstat from stat).
const AtSymlinkNoFollow = 0x100

// StatxArgs is the argument record for statx(2).
type StatxArgs struct {
	Dirfd    int32
	PathAddr guestmem.Addr
	HasPath  bool
	Flags    int32
	Mask     uint32
	StatAddr guestmem.Addr
}

func (StatxArgs) syscallName() string { return "statx" }

// NewfstatatArgs is the argument record for newfstatat(2). Only built
// on architectures where the syscall exists (see pkg/syscalls build
// constraints).
type NewfstatatArgs struct {
	Dirfd    int32
	PathAddr guestmem.Addr
	HasPath  bool
	StatAddr guestmem.Addr
	HasStat  bool
	Flags    int32
}

func (NewfstatatArgs) syscallName() string { return "newfstatat" }

// StatfsArgs is the argument record for statfs(2).
type StatfsArgs struct {
	PathAddr guestmem.Addr
	HasPath  bool
}

func (StatfsArgs) syscallName() string { return "statfs" }

// ReadlinkArgs is the argument record for readlink(2).
type ReadlinkArgs struct {
	PathAddr guestmem.Addr
	HasPath  bool
	BufAddr  guestmem.Addr
	HasBuf   bool
	Bufsize  int
}

func (ReadlinkArgs) syscallName() string { return "readlink" }

// ReadlinkatArgs is the argument record for readlinkat(2).
type ReadlinkatArgs struct {
	Dirfd    int32
	PathAddr guestmem.Addr
	HasPath  bool
	BufAddr  guestmem.Addr
	HasBuf   bool
	BufLen   int
}

func (ReadlinkatArgs) syscallName() string { return "readlinkat" }

// SymlinkArgs is the argument record for symlink(2). Target is the
// opaque symlink contents; Linkpath is the path the link is created
// at. Only Linkpath is ever translated.
type SymlinkArgs struct {
	TargetAddr   guestmem.Addr
	HasTarget    bool
	LinkpathAddr guestmem.Addr
	HasLinkpath  bool
}

func (SymlinkArgs) syscallName() string { return "symlink" }

// SymlinkatArgs is the argument record for symlinkat(2).
type SymlinkatArgs struct {
	TargetAddr   guestmem.Addr
	HasTarget    bool
	NewDirfd     int32
	LinkpathAddr guestmem.Addr
	HasLinkpath  bool
}

func (SymlinkatArgs) syscallName() string { return "symlinkat" }

// LinkatArgs is the argument record for linkat(2).
type LinkatArgs struct {
	OldDirfd    int32
	OldpathAddr guestmem.Addr
	HasOldpath  bool
	NewDirfd    int32
	NewpathAddr guestmem.Addr
	HasNewpath  bool
	Flags       int32
}

func (LinkatArgs) syscallName() string { return "linkat" }
