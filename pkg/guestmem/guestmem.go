/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package guestmem is the guest memory bridge: it reads C-strings and
// fixed-size structs out of a traced process's address space, and
// reserves/writes scratch space on that process's own stack so
// rewritten syscall arguments can be injected without touching host
// memory the guest doesn't already map.
package guestmem

// Addr is a guest virtual address. It has no meaning on the host side;
// it is only ever passed back into the same Memory/Scratch that
// produced or accepted it.
type Addr uintptr

// Memory reads and writes the memory of one stopped guest thread. A
// Memory is only valid for the duration of the current syscall: do not
// retain it past the handler returning.
type Memory interface {
	// ReadPath reads a NUL-terminated byte string at addr and
	// returns it as an owned host-side string. Faults (unmapped
	// memory, a fault mid-read) are returned as an error; callers
	// must treat that as a handler-level failure per spec.md §7 —
	// the syscall this read was servicing is never emitted.
	ReadPath(addr Addr) (string, error)

	// ReadStruct reads len(out) bytes at addr into out.
	ReadStruct(addr Addr, out []byte) error

	// WriteBytes copies data into addr, which must have been
	// obtained from a Scratch belonging to this Memory (via
	// Scratch.Reserve, after Scratch.Commit) or be an address the
	// syscall's own arguments already pointed at.
	WriteBytes(addr Addr, data []byte) error
}

// Scratch reserves space on the guest thread's own stack for the
// duration of the current syscall. Two reservations may be active
// simultaneously (linkat rewrites two paths); Commit finalizes all
// reservations made so far in one combined stack-pointer adjustment,
// so a guest thread never observes a half-reserved stack. The
// reservation is released automatically when the guest resumes past
// the current syscall — callers must not retain a Scratch or its
// addresses past the handler returning.
type Scratch interface {
	// Reserve allocates n bytes and returns the guest address they
	// will occupy once Commit succeeds. The address is not valid to
	// write to until Commit returns nil.
	Reserve(n int) (Addr, error)

	// Commit finalizes every Reserve call made on this Scratch so
	// far. It may only be called once per Scratch.
	Commit() error
}
