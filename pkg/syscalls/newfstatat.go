/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

//go:build !arm64

package syscalls

import (
	"context"

	"github.com/containerd/log"
	"github.com/pkg/errors"

	"github.com/agentfs/sandboxfs/pkg/pathtranslate"
	"github.com/agentfs/sandboxfs/pkg/tracer"
	"github.com/agentfs/sandboxfs/pkg/vfs"
)

// Newfstatat implements handle_newfstatat. newfstatat is not part of
// aarch64's syscall table (stat.rs gates it out there too); a
// virtualized backend is served directly, AT_SYMLINK_NOFOLLOW
// selecting Lstat over Stat, and a successful result is written into
// the guest's stat buffer.
func (h *Handlers) Newfstatat(ctx context.Context, guest tracer.Guest, args tracer.NewfstatatArgs) (outcome tracer.Outcome, err error) {
	defer func() { recordOutcome("newfstatat", &outcome) }()

	kernelDirfd := h.translateDirfd(args.Dirfd)
	if !args.HasPath {
		return tracer.PassThrough(), nil
	}

	mem := guest.Memory()
	path, err := mem.ReadPath(args.PathAddr)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "read newfstatat path")
	}

	if entry, _, found := h.Mounts.Resolve(path); found && entry.Backend.IsVirtual() {
		followSymlinks := args.Flags&tracer.AtSymlinkNoFollow == 0
		var rec vfs.StatRecord
		if followSymlinks {
			rec, err = entry.Backend.Stat(ctx, path)
		} else {
			rec, err = entry.Backend.Lstat(ctx, path)
		}
		if err != nil {
			log.G(ctx).WithError(err).Debug("virtual newfstatat failed")
			kind := vfs.KindOf(err)
			recordVFSError(kind)
			return resultErrno(vfs.StatErrno(kind)), nil
		}
		if args.HasStat {
			if err := mem.WriteBytes(args.StatAddr, statBytes(&rec)); err != nil {
				return tracer.Outcome{}, errors.Wrap(err, "write stat buffer")
			}
		}
		return tracer.Result(0), nil
	}

	scratch, err := guest.Stack(ctx)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "reserve newfstatat scratch")
	}
	newAddr, ok, err := pathtranslate.Translate(mem, scratch, args.PathAddr, h.Mounts)
	if err != nil {
		return tracer.Outcome{}, err
	}
	if !ok {
		return tracer.PassThrough(), nil
	}

	rewritten := args
	rewritten.Dirfd = kernelDirfd
	rewritten.PathAddr = newAddr
	result, err := guest.Inject(ctx, rewritten)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "inject newfstatat")
	}
	return tracer.Result(result), nil
}
