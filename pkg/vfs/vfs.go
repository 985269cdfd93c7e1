/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package vfs defines the capability contract that every mounted
// backend must implement, and the abstract error taxonomy backends use
// to report failures without depending on errno.
package vfs

import (
	"context"

	"golang.org/x/sys/unix"
)

// StatRecord is the kernel-native stat layout for the current
// architecture. Backends produce this directly; the guest memory
// bridge copies its raw bytes into the guest's buffer without
// reinterpreting them.
type StatRecord = unix.Stat_t

// VFS is the capability contract a mounted backend exposes to the
// syscall handlers. Paths are absolute, pre-resolved, and presented
// exactly as received from the guest. Implementations must be safe for
// concurrent calls from multiple guest threads.
type VFS interface {
	// IsVirtual reports whether this backend services operations
	// itself (true) or only participates in path redirection (false).
	// Handlers never call Stat/Lstat/Readlink/Symlink/Link on a
	// backend for which IsVirtual is false.
	IsVirtual() bool

	Stat(ctx context.Context, path string) (StatRecord, error)
	Lstat(ctx context.Context, path string) (StatRecord, error)
	Readlink(ctx context.Context, path string) (string, error)
	Symlink(ctx context.Context, target, linkpath string) error
	Link(ctx context.Context, oldpath, newpath string) error
}
