/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package tracer defines the contract a ptrace supervisor exposes to
// the syscall handlers in pkg/syscalls: the argument record for each
// intercepted syscall, the guest's memory and stack, and the
// re-injection primitive.
package tracer

import (
	"context"

	"github.com/agentfs/sandboxfs/pkg/guestmem"
)

// Guest is what a syscall handler receives for the guest thread that
// is currently stopped at a syscall entry. It is only valid for the
// duration of that one handler invocation.
type Guest interface {
	// Memory returns the bridge to this guest thread's address
	// space.
	Memory() guestmem.Memory

	// Stack reserves a Scratch region on this guest thread's own
	// stack. A handler calls this at most once per syscall; Reserve
	// may be called on the result multiple times before Commit.
	Stack(ctx context.Context) (guestmem.Scratch, error)

	// Inject replaces the pending syscall with sc and returns the
	// kernel's result for it.
	Inject(ctx context.Context, sc Syscall) (int64, error)
}

// Syscall is a rewritten syscall ready for re-injection. Each
// intercepted syscall family has its own argument type (see
// syscalls.go); all of them implement Syscall so Guest.Inject has one
// entry point regardless of which syscall is being rewritten.
type Syscall interface {
	syscallName() string
}

// outcomeKind distinguishes the three shapes of tracer contract result
// from spec.md §6.2.
type outcomeKind int

const (
	outcomePassThrough outcomeKind = iota
	outcomeResult
	outcomeRewrite
)

// Outcome is the closed sum type a syscall handler returns: either it
// produced a final result itself, it wants a rewritten syscall
// injected, or it declines and the original syscall should run
// unmodified.
type Outcome struct {
	kind    outcomeKind
	result  int64
	rewrite Syscall
}

// PassThrough means: emit nothing, let the original syscall run.
func PassThrough() Outcome { return Outcome{kind: outcomePassThrough} }

// Result means: the handler has produced the final kernel return
// value; the tracer forwards it to the guest as-is. Per spec.md §4.F,
// this is always a negated errno on failure or a non-negative count/
// code on success.
func Result(v int64) Outcome { return Outcome{kind: outcomeResult, result: v} }

// Rewrite means: inject sc in place of the original syscall and return
// its result to the guest.
func Rewrite(sc Syscall) Outcome { return Outcome{kind: outcomeRewrite, rewrite: sc} }

// IsPassThrough reports whether this Outcome is PassThrough().
func (o Outcome) IsPassThrough() bool { return o.kind == outcomePassThrough }

// ResultValue returns (value, true) if this Outcome is Result(value).
func (o Outcome) ResultValue() (int64, bool) {
	return o.result, o.kind == outcomeResult
}

// RewriteSyscall returns (sc, true) if this Outcome is Rewrite(sc).
func (o Outcome) RewriteSyscall() (Syscall, bool) {
	return o.rewrite, o.kind == outcomeRewrite
}
