/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package vfs

import "golang.org/x/sys/unix"

// StatErrno maps a VFS error kind to the errno a stat-family syscall
// (newfstatat) returns to the guest. Grounded on
// original_source/sandbox/src/syscall/stat.rs's handle_newfstatat match
// arms: NotFound -> ENOENT, PermissionDenied -> EACCES, everything else
// -> EIO. AlreadyExists is not reachable from stat in the original but
// is included for completeness of the table in spec.md §4.
func StatErrno(kind ErrorKind) int {
	switch kind {
	case NotFound:
		return int(unix.ENOENT)
	case PermissionDenied:
		return int(unix.EACCES)
	case AlreadyExists:
		return int(unix.EEXIST)
	default:
		return int(unix.EIO)
	}
}

// LinkErrno maps a VFS error kind to the errno linkat returns.
// Grounded on handle_linkat's match arms: PermissionDenied -> EPERM,
// distinct from the stat family's EACCES.
func LinkErrno(kind ErrorKind) int {
	switch kind {
	case NotFound:
		return int(unix.ENOENT)
	case PermissionDenied:
		return int(unix.EPERM)
	case AlreadyExists:
		return int(unix.EEXIST)
	default:
		return int(unix.EIO)
	}
}

// ReadlinkErrno maps a VFS error kind to the errno readlink and
// readlinkat return. Grounded on handle_readlink's match arms: the
// catch-all is EINVAL, not EIO.
func ReadlinkErrno(kind ErrorKind) int {
	switch kind {
	case NotFound:
		return int(unix.ENOENT)
	case PermissionDenied:
		return int(unix.EACCES)
	case AlreadyExists:
		return int(unix.EEXIST)
	default:
		return int(unix.EINVAL)
	}
}

// SymlinkErrno maps a VFS error kind to the errno symlink and symlinkat
// return. Grounded on handle_symlink and handle_symlinkat's match arms,
// which catch all with EIO rather than readlink's EINVAL.
func SymlinkErrno(kind ErrorKind) int {
	switch kind {
	case NotFound:
		return int(unix.ENOENT)
	case PermissionDenied:
		return int(unix.EACCES)
	case AlreadyExists:
		return int(unix.EEXIST)
	default:
		return int(unix.EIO)
	}
}
