/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package syscalls implements the per-syscall handler contract of
// spec.md §4.F: classify the guest's syscall, virtualize its dirfd
// arguments against a pkg/fdtable.Table, and dispatch to one of
// pass-through, virtual-serve, or rewrite-and-reinject, consulting a
// pkg/mount.Table to decide which. Each handler is grounded line-for-
// line on the corresponding handle_* function in
// original_source/sandbox/src/syscall/stat.rs.
package syscalls

import (
	"context"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/agentfs/sandboxfs/internal/metrics"
	"github.com/agentfs/sandboxfs/pkg/fdtable"
	"github.com/agentfs/sandboxfs/pkg/mount"
	"github.com/agentfs/sandboxfs/pkg/pathtranslate"
	"github.com/agentfs/sandboxfs/pkg/tracer"
	"github.com/agentfs/sandboxfs/pkg/vfs"
)

// Handlers bundles the shared tables every handler consults. One
// Handlers is built per traced process group and shared by every guest
// thread's goroutine; it holds no per-call state itself.
type Handlers struct {
	Mounts *mount.Table
	FDs    *fdtable.Table
}

// New returns a Handlers consulting mounts and fds.
func New(mounts *mount.Table, fds *fdtable.Table) *Handlers {
	return &Handlers{Mounts: mounts, FDs: fds}
}

func (h *Handlers) translateDirfd(dirfd int32) int32 {
	if dirfd == fdtable.AtFDCWD {
		return dirfd
	}
	return h.FDs.Translate(dirfd)
}

// resultErrno packs a negative errno the way every handler in
// stat.rs returns one: Ok(Some(-errno as i64)).
func resultErrno(errno int) tracer.Outcome {
	return tracer.Result(-int64(errno))
}

// recordOutcome increments SyscallsHandled for name, classifying
// outcome as its string label. It is called via defer from every
// handler entry point, using named returns, so instrumentation never
// has to be duplicated at each handler's many return statements.
func recordOutcome(name string, outcome *tracer.Outcome) {
	label := "pass_through"
	switch {
	case outcome == nil:
		label = "error"
	case outcome.IsPassThrough():
		label = "pass_through"
	default:
		if _, ok := outcome.ResultValue(); ok {
			label = "result"
		} else if _, ok := outcome.RewriteSyscall(); ok {
			label = "rewrite"
		}
	}
	metrics.SyscallsHandled.WithLabelValues(name, label).Inc()
}

// recordVFSError increments VFSErrors for the error.Kind a VFS backend
// call failed with.
func recordVFSError(kind vfs.ErrorKind) {
	metrics.VFSErrors.WithLabelValues(kind.String()).Inc()
}

// statBytes reinterprets a stat record's raw memory as a byte slice,
// mirroring the original's std::slice::from_raw_parts over libc::stat:
// the guest buffer receives the kernel-native layout untouched.
func statBytes(rec *vfs.StatRecord) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(rec)), unsafe.Sizeof(*rec))
}

// Statx implements handle_statx. statx has no virtual-backend
// fallback of its own: the original always returns ENOSYS for a
// virtual mount and leaves the guest to retry with newfstatat.
func (h *Handlers) Statx(ctx context.Context, guest tracer.Guest, args tracer.StatxArgs) (outcome tracer.Outcome, err error) {
	defer func() { recordOutcome("statx", &outcome) }()

	kernelDirfd := h.translateDirfd(args.Dirfd)
	if !args.HasPath {
		return tracer.PassThrough(), nil
	}

	mem := guest.Memory()
	path, err := mem.ReadPath(args.PathAddr)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "read statx path")
	}

	if entry, _, found := h.Mounts.Resolve(path); found && entry.Backend.IsVirtual() {
		return resultErrno(int(unix.ENOSYS)), nil
	}

	scratch, err := guest.Stack(ctx)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "reserve statx scratch")
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
		return tracer.Outcome{}, errors.Wrap(err, "inject statx")
	}
	return tracer.Result(result), nil
}

// Statfs implements handle_statfs: path translation only, no virtual
// dispatch and no dirfd (statfs takes none). A rewrite, if any, is
// always re-injected by the caller — stat.rs returns the rewritten
// syscall rather than a result.
func (h *Handlers) Statfs(ctx context.Context, guest tracer.Guest, args tracer.StatfsArgs) (outcome tracer.Outcome, err error) {
	defer func() { recordOutcome("statfs", &outcome) }()

	if !args.HasPath {
		return tracer.PassThrough(), nil
	}
	mem := guest.Memory()
	scratch, err := guest.Stack(ctx)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "reserve statfs scratch")
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
	return tracer.Rewrite(rewritten), nil
}

// Readlinkat implements handle_readlinkat: dirfd is virtualized on
// rewrite (pass-through leaves the original syscall untouched); a
// virtual backend serves the link directly.
func (h *Handlers) Readlinkat(ctx context.Context, guest tracer.Guest, args tracer.ReadlinkatArgs) (outcome tracer.Outcome, err error) {
	defer func() { recordOutcome("readlinkat", &outcome) }()

	kernelDirfd := h.translateDirfd(args.Dirfd)
	if !args.HasPath {
		return tracer.PassThrough(), nil
	}
	mem := guest.Memory()
	path, err := mem.ReadPath(args.PathAddr)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "read readlinkat path")
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
		if n > args.BufLen {
			n = args.BufLen
		}
		if err := mem.WriteBytes(args.BufAddr, []byte(target[:n])); err != nil {
			return tracer.Outcome{}, errors.Wrap(err, "write readlinkat buffer")
		}
		return tracer.Result(int64(n)), nil
	}

	scratch, err := guest.Stack(ctx)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "reserve readlinkat scratch")
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
		return tracer.Outcome{}, errors.Wrap(err, "inject readlinkat")
	}
	return tracer.Result(result), nil
}

// Symlinkat implements handle_symlinkat: linkpath's dirfd is
// virtualized; only linkpath participates in mount resolution.
func (h *Handlers) Symlinkat(ctx context.Context, guest tracer.Guest, args tracer.SymlinkatArgs) (outcome tracer.Outcome, err error) {
	defer func() { recordOutcome("symlinkat", &outcome) }()

	kernelDirfd := h.translateDirfd(args.NewDirfd)
	if !args.HasLinkpath || !args.HasTarget {
		return tracer.PassThrough(), nil
	}
	mem := guest.Memory()
	linkpath, err := mem.ReadPath(args.LinkpathAddr)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "read symlinkat linkpath")
	}
	target, err := mem.ReadPath(args.TargetAddr)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "read symlinkat target")
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
		return tracer.Outcome{}, errors.Wrap(err, "reserve symlinkat scratch")
	}
	newAddr, ok, err := pathtranslate.Translate(mem, scratch, args.LinkpathAddr, h.Mounts)
	if err != nil {
		return tracer.Outcome{}, err
	}
	if !ok {
		return tracer.PassThrough(), nil
	}
	rewritten := args
	rewritten.NewDirfd = kernelDirfd
	rewritten.LinkpathAddr = newAddr
	result, err := guest.Inject(ctx, rewritten)
	if err != nil {
		return tracer.Outcome{}, errors.Wrap(err, "inject symlinkat")
	}
	return tracer.Result(result), nil
}
