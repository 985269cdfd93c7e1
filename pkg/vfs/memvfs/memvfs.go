/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package memvfs is a minimal in-memory VFS backend. It exists as a
// worked example of the pkg/vfs.VFS contract and as a test fixture for
// pkg/syscalls; it is not part of the CORE (spec.md §1 places concrete
// VFS implementations outside the CORE) and carries no persistence.
package memvfs

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/agentfs/sandboxfs/pkg/vfs"
)

type node struct {
	mode     uint32
	linkDest string // non-empty for symlinks
	nlink    uint32
}

// VFS is a sync.RWMutex-guarded map of paths to nodes.
type VFS struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

// New returns an empty in-memory VFS.
func New() *VFS {
	return &VFS{nodes: make(map[string]*node)}
}

func (v *VFS) IsVirtual() bool { return true }

func (v *VFS) Stat(_ context.Context, path string) (vfs.StatRecord, error) {
	return v.statLocked(path, true)
}

func (v *VFS) Lstat(_ context.Context, path string) (vfs.StatRecord, error) {
	return v.statLocked(path, false)
}

func (v *VFS) statLocked(path string, followSymlink bool) (vfs.StatRecord, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	n, ok := v.nodes[path]
	if !ok {
		return vfs.StatRecord{}, vfs.NewError(vfs.NotFound, nil)
	}
	for followSymlink && n.linkDest != "" {
		target, ok := v.nodes[n.linkDest]
		if !ok {
			return vfs.StatRecord{}, vfs.NewError(vfs.NotFound, nil)
		}
		n = target
	}

	now := time.Now().Unix()
	return unix.Stat_t{
		Mode:  n.mode,
		Nlink: uint64(n.nlink),
		Mtim:  unix.Timespec{Sec: now},
	}, nil
}

func (v *VFS) Readlink(_ context.Context, path string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	n, ok := v.nodes[path]
	if !ok || n.linkDest == "" {
		return "", vfs.NewError(vfs.NotFound, nil)
	}
	return n.linkDest, nil
}

func (v *VFS) Symlink(_ context.Context, target, linkpath string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.nodes[linkpath]; exists {
		return vfs.NewError(vfs.AlreadyExists, nil)
	}
	v.nodes[linkpath] = &node{mode: unix.S_IFLNK | 0777, linkDest: target, nlink: 1}
	return nil
}

func (v *VFS) Link(_ context.Context, oldpath, newpath string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	n, ok := v.nodes[oldpath]
	if !ok {
		return vfs.NewError(vfs.NotFound, nil)
	}
	if _, exists := v.nodes[newpath]; exists {
		return vfs.NewError(vfs.AlreadyExists, nil)
	}
	n.nlink++
	v.nodes[newpath] = n
	return nil
}
