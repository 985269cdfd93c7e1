/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package fdtable maps guest-visible directory file descriptors to the
// real kernel descriptors the tracer opened on the guest's behalf, for
// the "*at" family of syscalls.
package fdtable

import "sync"

// AtFDCWD is the sentinel dirfd meaning "relative to the current
// working directory". It is reserved and never translated.
const AtFDCWD int32 = -100

// Table is shared across all guest threads of a process group. Queries
// (Translate) vastly outnumber mutations (Insert/Remove), so it is
// guarded by a RWMutex rather than the plain Mutex a single-writer
// structure would use.
type Table struct {
	mu  sync.RWMutex
	fds map[int32]int32
}

// New returns an empty FD table.
func New() *Table {
	return &Table{fds: make(map[int32]int32)}
}

// Insert records that guestFD is backed by kernelFD. Called when the
// tracer synthesizes a descriptor for the guest (e.g. a directory the
// guest opened under a virtual mount).
func (t *Table) Insert(guestFD, kernelFD int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fds[guestFD] = kernelFD
}

// Remove forgets guestFD, called on close.
func (t *Table) Remove(guestFD int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.fds, guestFD)
}

// Translate implements spec.md §4.B: AT_FDCWD passes through
// unchanged; a guestFD with no entry is assumed to already refer to a
// real kernel object and is returned unchanged; otherwise the mapped
// kernel fd is returned.
func (t *Table) Translate(guestFD int32) int32 {
	if guestFD == AtFDCWD {
		return guestFD
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if kernelFD, ok := t.fds[guestFD]; ok {
		return kernelFD
	}
	return guestFD
}

// Len reports the number of tracked descriptors. Exposed for tests.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.fds)
}
