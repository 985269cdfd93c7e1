/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package vfs

import "context"

// Passthrough is the VFS bound to a "passthrough" mount entry in
// sandboxconfig.Config: it never serves anything itself, it only marks
// its mount prefix as real-filesystem redirection, so pkg/mount.Table
// always has a non-nil Backend to hand back even for the entries that
// exist purely for path translation.
type Passthrough struct{}

func (Passthrough) IsVirtual() bool { return false }

func (Passthrough) Stat(context.Context, string) (StatRecord, error) {
	panic("vfs: Stat called on a passthrough backend")
}

func (Passthrough) Lstat(context.Context, string) (StatRecord, error) {
	panic("vfs: Lstat called on a passthrough backend")
}

func (Passthrough) Readlink(context.Context, string) (string, error) {
	panic("vfs: Readlink called on a passthrough backend")
}

func (Passthrough) Symlink(context.Context, string, string) error {
	panic("vfs: Symlink called on a passthrough backend")
}

func (Passthrough) Link(context.Context, string, string) error {
	panic("vfs: Link called on a passthrough backend")
}
