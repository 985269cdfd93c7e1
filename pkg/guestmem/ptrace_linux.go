/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

//go:build linux

package guestmem

import (
	"bytes"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// redZone is the x86-64/arm64 ABI red zone: bytes below the stack
// pointer a leaf function may use without adjusting SP. Scratch
// reservations must clear it before writing anything.
const redZone = 128

// maxPathRead bounds a single ReadPath call: Linux's PATH_MAX plus the
// trailing NUL, so a corrupt or hostile guest can't make the bridge
// loop forever chasing a string with no terminator.
const maxPathRead = 4096 + 1

// PtraceMemory is the production Memory implementation: it reads and
// writes a stopped tracee's address space with PTRACE_PEEKDATA/POKEDATA,
// one word at a time (process_vm_readv/writev would also work here; ptrace is used
// because the tracer already holds the ptrace attachment and a single
// IO mechanism is simpler to reason about under the cooperative
// scheduler in pkg/tracer).
type PtraceMemory struct {
	// Pid is the tracee's thread ID, as known to the host.
	Pid int
}

func (m *PtraceMemory) ReadPath(addr Addr) (string, error) {
	var buf bytes.Buffer
	word := make([]byte, wordSize)
	for off := 0; off < maxPathRead; off += wordSize {
		n, err := unix.PtracePeekData(m.Pid, uintptr(addr)+uintptr(off), word)
		if err != nil {
			return "", errors.Wrapf(err, "read path at %#x", addr)
		}
		if n == 0 {
			// PtracePeekData read nothing at the tail of a
			// mapping; treat that as a fault rather than
			// silently truncating.
			return "", errors.Errorf("short read at %#x", addr)
		}
		if i := bytes.IndexByte(word, 0); i >= 0 {
			buf.Write(word[:i])
			return buf.String(), nil
		}
		buf.Write(word)
	}
	return "", errors.Errorf("path at %#x exceeds PATH_MAX", addr)
}

func (m *PtraceMemory) ReadStruct(addr Addr, out []byte) error {
	remaining := out
	cursor := uintptr(addr)
	for len(remaining) > 0 {
		chunkLen := wordSize
		if chunkLen > len(remaining) {
			chunkLen = len(remaining)
		}
		word := make([]byte, wordSize)
		if _, err := unix.PtracePeekData(m.Pid, cursor, word); err != nil {
			return errors.Wrapf(err, "read struct at %#x", addr)
		}
		copy(remaining[:chunkLen], word)
		remaining = remaining[chunkLen:]
		cursor += uintptr(chunkLen)
	}
	return nil
}

func (m *PtraceMemory) WriteBytes(addr Addr, data []byte) error {
	cursor := uintptr(addr)
	remaining := data
	for len(remaining) > 0 {
		chunkLen := wordSize
		word := make([]byte, wordSize)
		if chunkLen > len(remaining) {
			// Preserve the tail bytes already in guest memory
			// so a partial final word doesn't corrupt adjacent
			// stack contents.
			if _, err := unix.PtracePeekData(m.Pid, cursor, word); err != nil {
				return errors.Wrapf(err, "read-modify-write tail at %#x", addr)
			}
			chunkLen = len(remaining)
		}
		copy(word, remaining[:chunkLen])
		if _, err := unix.PtracePokeData(m.Pid, cursor, word); err != nil {
			return errors.Wrapf(err, "write at %#x", addr)
		}
		remaining = remaining[chunkLen:]
		cursor += uintptr(chunkLen)
	}
	return nil
}

const wordSize = 8

// PtraceScratch bump-allocates scratch space below the tracee's
// current stack pointer. All Reserve calls must happen before Commit;
// Commit performs the single PTRACE_SETREGS that moves the guest's
// stack pointer below every reservation made so far, so the tracee
// never observes a stack pointer that only accounts for some of them.
type PtraceScratch struct {
	Pid int

	base      uintptr // stack pointer before any reservation
	cursor    uintptr // next address to hand out, counting down
	reserved  uintptr // bytes handed out so far, for budget enforcement
	budget    uintptr // 0 means unlimited
	committed bool
}

// NewPtraceScratch reads the tracee's current stack pointer via
// PTRACE_GETREGS and returns a Scratch positioned below its red zone.
// budget caps the total bytes Reserve may hand out across the life of
// this Scratch (sandboxconfig's scratch_size); 0 leaves it unbounded.
func NewPtraceScratch(pid int, budget int64) (*PtraceScratch, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return nil, errors.Wrap(err, "ptrace getregs")
	}
	sp := stackPointer(&regs)
	return &PtraceScratch{Pid: pid, base: sp - redZone, cursor: sp - redZone, budget: uintptr(budget)}, nil
}

func (s *PtraceScratch) Reserve(n int) (Addr, error) {
	if s.committed {
		return 0, errors.New("scratch already committed")
	}
	// 16-byte align, matching the x86-64/arm64 stack alignment ABI.
	aligned := (n + 15) &^ 15
	if s.budget != 0 && s.reserved+uintptr(aligned) > s.budget {
		return 0, errors.Errorf("scratch reservation of %d bytes exceeds %d-byte budget", aligned, s.budget)
	}
	s.reserved += uintptr(aligned)
	s.cursor -= uintptr(aligned)
	return Addr(s.cursor), nil
}

func (s *PtraceScratch) Commit() error {
	if s.committed {
		return errors.New("scratch already committed")
	}
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(s.Pid, &regs); err != nil {
		return errors.Wrap(err, "ptrace getregs")
	}
	setStackPointer(&regs, s.cursor)
	if err := unix.PtraceSetRegs(s.Pid, &regs); err != nil {
		return errors.Wrap(err, "ptrace setregs")
	}
	s.committed = true
	return nil
}

// stackPointer and setStackPointer isolate the one register-layout
// difference between architectures PtraceRegs covers (amd64's Rsp vs
// arm64's Sp); every other guestmem operation is architecture-neutral.
// See ptrace_linux_amd64.go / ptrace_linux_arm64.go.
