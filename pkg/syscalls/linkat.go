/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package syscalls

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/agentfs/sandboxfs/pkg/tracer"
	"github.com/agentfs/sandboxfs/pkg/vfs"
)

// Linkat implements handle_linkat. newpath is checked against the
// mount table first: a virtual backend there serves the link directly
// and oldpath is never even resolved against the table. Otherwise both
// paths are resolved independently; when both need translation they
// share a single scratch commit (spec.md §4.E's "multi-reservation,
// then one commit" rule for stack safety) rather than going through
// pkg/pathtranslate.Translate, which only ever commits one reservation
// at a time.
func (h *Handlers) Linkat(ctx context.Context, guest tracer.Guest, args tracer.LinkatArgs) (outcome tracer.Outcome, err error) {
	defer func() { recordOutcome("linkat", &outcome) }()

	kernelOldDirfd := h.translateDirfd(args.OldDirfd)
	kernelNewDirfd := h.translateDirfd(args.NewDirfd)

	if !args.HasOldpath || !args.HasNewpath {
		return tracer.PassThrough(), nil
	}

	mem := guest.Memory()
	oldpath, err := mem.ReadPath(args.OldpathAddr)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "read linkat oldpath")
	}
	newpath, err := mem.ReadPath(args.NewpathAddr)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "read linkat newpath")
	}

	if entry, _, found := h.Mounts.Resolve(newpath); found && entry.Backend.IsVirtual() {
		if err := entry.Backend.Link(ctx, oldpath, newpath); err != nil {
			kind := vfs.KindOf(err)
			recordVFSError(kind)
			return resultErrno(vfs.LinkErrno(kind)), nil
		}
		return tracer.Result(0), nil
	}

	oldEntry, oldTranslated, oldFound := h.Mounts.Resolve(oldpath)
	newEntry, newTranslated, newFound := h.Mounts.Resolve(newpath)
	oldNeeds := oldFound && !oldEntry.Backend.IsVirtual()
	newNeeds := newFound && !newEntry.Backend.IsVirtual()

	if oldFound && oldEntry.Backend.IsVirtual() {
		// oldpath lives behind a virtual mount but newpath didn't (the
		// newpath-virtual case already returned above): a link across
		// a virtual/real mount boundary has no kernel-level meaning,
		// so reject it the way link(2) itself rejects a cross-
		// filesystem hard link.
		return resultErrno(int(unix.EXDEV)), nil
	}

	switch {
	case oldNeeds && newNeeds:
		scratch, err := guest.Stack(ctx)
		if err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "reserve linkat scratch")
		}
		oldData := append([]byte(oldTranslated), 0)
		newData := append([]byte(newTranslated), 0)
		oldAddr, err := scratch.Reserve(len(oldData))
		if err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "reserve linkat oldpath scratch")
		}
		newAddr, err := scratch.Reserve(len(newData))
		if err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "reserve linkat newpath scratch")
		}
		if err := scratch.Commit(); err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "commit linkat scratch")
		}
		if err := mem.WriteBytes(oldAddr, oldData); err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "write linkat oldpath")
		}
		if err := mem.WriteBytes(newAddr, newData); err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "write linkat newpath")
		}
		rewritten := args
		rewritten.OldDirfd = kernelOldDirfd
		rewritten.OldpathAddr = oldAddr
		rewritten.NewDirfd = kernelNewDirfd
		rewritten.NewpathAddr = newAddr
		result, err := guest.Inject(ctx, rewritten)
		if err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "inject linkat")
		}
		return tracer.Result(result), nil

	case oldNeeds:
		scratch, err := guest.Stack(ctx)
		if err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "reserve linkat scratch")
		}
		oldData := append([]byte(oldTranslated), 0)
		oldAddr, err := scratch.Reserve(len(oldData))
		if err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "reserve linkat oldpath scratch")
		}
		if err := scratch.Commit(); err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "commit linkat scratch")
		}
		if err := mem.WriteBytes(oldAddr, oldData); err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "write linkat oldpath")
		}
		rewritten := args
		rewritten.OldDirfd = kernelOldDirfd
		rewritten.OldpathAddr = oldAddr
		rewritten.NewDirfd = kernelNewDirfd
		result, err := guest.Inject(ctx, rewritten)
		if err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "inject linkat")
		}
		return tracer.Result(result), nil

	case newNeeds:
		scratch, err := guest.Stack(ctx)
		if err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "reserve linkat scratch")
		}
		newData := append([]byte(newTranslated), 0)
		newAddr, err := scratch.Reserve(len(newData))
		if err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "reserve linkat newpath scratch")
		}
		if err := scratch.Commit(); err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "commit linkat scratch")
		}
		if err := mem.WriteBytes(newAddr, newData); err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "write linkat newpath")
		}
		rewritten := args
		rewritten.OldDirfd = kernelOldDirfd
		rewritten.NewDirfd = kernelNewDirfd
		rewritten.NewpathAddr = newAddr
		result, err := guest.Inject(ctx, rewritten)
		if err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "inject linkat")
		}
		return tracer.Result(result), nil

	default:
		return tracer.PassThrough(), nil
	}
}
