/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package pathtranslate implements the "rewrite a guest path for
// re-injection" half of the path-bearing syscall handlers: read the
// path the guest passed, consult the mount table, and — for a real
// redirect — materialize the translated path into freshly committed
// guest scratch memory.
package pathtranslate

import (
	"github.com/pkg/errors"

	"github.com/agentfs/sandboxfs/pkg/guestmem"
	"github.com/agentfs/sandboxfs/pkg/mount"
)

// Translate implements spec.md §4.D for the single-path handlers
// (statx, newfstatat, statfs, readlink, readlinkat, symlink,
// symlinkat). linkat has two path arguments that may each need
// translation and manages its own scratch reservations directly in
// pkg/syscalls, rather than through this helper.
//
// Translate reads the path at pathAddr, resolves it against mt, and:
//   - returns ok=false if nothing matched (the handler should use the
//     original address — pass-through for this path argument);
//   - returns ok=false if the match is a virtual backend — virtual
//     handling belongs to the syscall handler, run before Translate is
//     ever consulted, and never re-injects;
//   - otherwise commits a fresh scratch reservation, writes the
//     translated host path (NUL-terminated) into it, and returns its
//     guest address.
func Translate(mem guestmem.Memory, scratch guestmem.Scratch, pathAddr guestmem.Addr, mt *mount.Table) (newAddr guestmem.Addr, ok bool, err error) {
	path, err := mem.ReadPath(pathAddr)
	if err != nil {
		return 0, false, errors.Wrap(err, "read guest path")
	}

	entry, translated, found := mt.Resolve(path)
	if !found {
		return 0, false, nil
	}
	if entry.Backend.IsVirtual() {
		return 0, false, nil
	}

	data := append([]byte(translated), 0)
	addr, err := scratch.Reserve(len(data))
	if err != nil {
		return 0, false, errors.Wrap(err, "reserve scratch")
	}
	if err := scratch.Commit(); err != nil {
		return 0, false, errors.Wrap(err, "commit scratch")
	}
	if err := mem.WriteBytes(addr, data); err != nil {
		return 0, false, errors.Wrap(err, "write translated path")
	}
	return addr, true, nil
}
