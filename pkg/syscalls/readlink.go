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

// Readlink implements handle_readlink. Not part of aarch64's syscall
// table (guests there only ever issue readlinkat). A virtual backend's
// target is truncated, unterminated, to at most bufsize bytes,
// matching readlink(2) semantics.
func (h *Handlers) Readlink(ctx context.Context, guest tracer.Guest, args tracer.ReadlinkArgs) (outcome tracer.Outcome, err error) {
	defer func() { recordOutcome("readlink", &outcome) }()

	if !args.HasPath {
		return tracer.PassThrough(), nil
	}
	mem := guest.Memory()
	path, err := mem.ReadPath(args.PathAddr)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "read readlink path")
	}

	if entry, _, found := h.Mounts.Resolve(path); found && entry.Backend.IsVirtual() {
		target, err := entry.Backend.Readlink(ctx, path)
		if err != nil {
			kind := vfs.KindOf(err)
			recordVFSError(kind)
			return resultErrno(vfs.ReadlinkErrno(kind)), nil
		}
		if !args.HasBuf {
			return tracer.Result(0), nil
		}
		n := len(target)
		if n > args.Bufsize {
			n = args.Bufsize
		}
		if err := mem.WriteBytes(args.BufAddr, []byte(target[:n])); err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "write readlink buffer")
		}
		return tracer.Result(int64(n)), nil
	}

	scratch, err := guest.Stack(ctx)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "reserve readlink scratch")
	}
	newAddr, ok, err := pathtranslate.Translate(mem, scratch, args.PathAddr, h.Mounts)
	if err != nil {
		return tracer.Outcome{}, err
	}
	if !ok {
		return tracer.PassThrough(), nil
	}
	rewritten := args
	rewritten.PathAddr = newAddr
	result, err := guest.Inject(ctx, rewritten)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "inject readlink")
	}
	return tracer.Result(result), nil
}
