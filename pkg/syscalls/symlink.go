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

	"github.com/pkg/errors"

	"github.com/agentfs/sandboxfs/pkg/pathtranslate"
	"github.com/agentfs/sandboxfs/pkg/tracer"
	"github.com/agentfs/sandboxfs/pkg/vfs"
)

// Symlink implements handle_symlink. Not part of aarch64's syscall
// table (guests there only ever issue symlinkat). Only linkpath is
// ever translated or checked against the mount table; target is
// opaque symlink content and travels unmodified.
func (h *Handlers) Symlink(ctx context.Context, guest tracer.Guest, args tracer.SymlinkArgs) (outcome tracer.Outcome, err error) {
	defer func() { recordOutcome("symlink", &outcome) }()

	if !args.HasLinkpath || !args.HasTarget {
		return tracer.PassThrough(), nil
	}
	mem := guest.Memory()
	linkpath, err := mem.ReadPath(args.LinkpathAddr)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "read symlink linkpath")
	}
	target, err := mem.ReadPath(args.TargetAddr)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "read symlink target")
	}

	if entry, _, found := h.Mounts.Resolve(linkpath); found && entry.Backend.IsVirtual() {
		if err := entry.Backend.Symlink(ctx, target, linkpath); err != nil {
			kind := vfs.KindOf(err)
			recordVFSError(kind)
			return resultErrno(vfs.SymlinkErrno(kind)), nil
		}
		return tracer.Result(0), nil
	}

	scratch, err := guest.Stack(ctx)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "reserve symlink scratch")
	}
	newAddr, ok, err := pathtranslate.Translate(mem, scratch, args.LinkpathAddr, h.Mounts)
	if err != nil {
		return tracer.Outcome{}, err
	}
	if !ok {
		return tracer.PassThrough(), nil
	}
	rewritten := args
	rewritten.LinkpathAddr = newAddr
	result, err := guest.Inject(ctx, rewritten)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "inject symlink")
	}
	return tracer.Result(result), nil
}
