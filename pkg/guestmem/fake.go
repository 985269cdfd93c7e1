/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package guestmem

import "github.com/pkg/errors"

// FakeMemory is a host-process-backed stand-in for PtraceMemory, used
// by pkg/pathtranslate's and pkg/syscalls's tests: a flat byte slice
// addressed by Addr, with no real tracee involved. It is exported (not
// a _test.go helper) because those other packages' tests import it.
type FakeMemory struct {
	buf []byte
}

// NewFakeMemory returns a FakeMemory backed by size bytes, addressed
// starting at Addr(0).
func NewFakeMemory(size int) *FakeMemory {
	return &FakeMemory{buf: make([]byte, size)}
}

// Put installs data at addr and returns addr, for test setup.
func (m *FakeMemory) Put(addr Addr, data []byte) Addr {
	copy(m.buf[addr:], data)
	return addr
}

// PutString NUL-terminates s and installs it at addr.
func (m *FakeMemory) PutString(addr Addr, s string) Addr {
	return m.Put(addr, append([]byte(s), 0))
}

func (m *FakeMemory) ReadPath(addr Addr) (string, error) {
	for i := int(addr); i < len(m.buf); i++ {
		if m.buf[i] == 0 {
			return string(m.buf[addr:i]), nil
		}
	}
	return "", errors.Errorf("unterminated path at %#x", addr)
}

func (m *FakeMemory) ReadStruct(addr Addr, out []byte) error {
	if int(addr)+len(out) > len(m.buf) {
		return errors.Errorf("read struct at %#x: out of range", addr)
	}
	copy(out, m.buf[addr:int(addr)+len(out)])
	return nil
}

func (m *FakeMemory) WriteBytes(addr Addr, data []byte) error {
	if int(addr)+len(data) > len(m.buf) {
		return errors.Errorf("write at %#x: out of range", addr)
	}
	copy(m.buf[addr:], data)
	return nil
}

// Bytes returns the contents written at [addr, addr+n).
func (m *FakeMemory) Bytes(addr Addr, n int) []byte {
	return append([]byte(nil), m.buf[addr:int(addr)+n]...)
}

// FakeScratch is a bump allocator over a FakeMemory's address space,
// mirroring PtraceScratch's Reserve-then-Commit contract without any
// real stack-pointer manipulation.
type FakeScratch struct {
	next      Addr
	limit     Addr
	committed bool
}

// NewFakeScratch reserves [start, start+size) for scratch use.
func NewFakeScratch(start Addr, size int) *FakeScratch {
	return &FakeScratch{next: start, limit: start + Addr(size)}
}

func (s *FakeScratch) Reserve(n int) (Addr, error) {
	if s.committed {
		return 0, errors.New("scratch already committed")
	}
	aligned := (n + 15) &^ 15
	addr := s.next
	if addr+Addr(aligned) > s.limit {
		return 0, errors.New("fake scratch exhausted")
	}
	s.next += Addr(aligned)
	return addr, nil
}

func (s *FakeScratch) Commit() error {
	if s.committed {
		return errors.New("scratch already committed")
	}
	s.committed = true
	return nil
}
