/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package mount implements the mount table: longest-prefix resolution
// of a guest path to the backend that serves it and, for real-
// filesystem redirects, the translated host path.
package mount

import (
	"path"
	"strings"
	"time"

	"github.com/cyphar/filepath-securejoin"
	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/pkg/errors"

	"github.com/agentfs/sandboxfs/internal/metrics"
	"github.com/agentfs/sandboxfs/pkg/vfs"
)

// Entry is one mount-table row: a guest-visible path prefix bound to a
// backend and, for real-filesystem redirection, the host path the
// prefix maps onto. BackendRoot is empty for virtual mounts.
type Entry struct {
	GuestPrefix string
	Backend     vfs.VFS
	BackendRoot string
}

// Table is an ordered, immutable-after-construction mount table. It is
// safe for concurrent use by any number of syscall handlers without any
// lock on the lookup path: the underlying radix tree is frozen at
// construction time and every Resolve is a read against that frozen
// root.
type Table struct {
	root *iradix.Node
}

// New builds a mount table from entries. It enforces the invariants
// from spec.md §3: no two entries may share a guest prefix, and every
// prefix must be absolute. Prefixes are normalized before insertion.
func New(entries []Entry) (*Table, error) {
	tree := iradix.New()
	for _, e := range entries {
		prefix, err := normalize(e.GuestPrefix)
		if err != nil {
			return nil, errors.Wrapf(err, "mount prefix %q", e.GuestPrefix)
		}
		if e.Backend == nil {
			return nil, errors.Errorf("mount prefix %q: nil backend", prefix)
		}
		key := indexKey(prefix)
		if _, ok := tree.Get(key); ok {
			return nil, errors.Errorf("duplicate mount prefix %q", prefix)
		}
		entry := e
		entry.GuestPrefix = prefix
		var updated *iradix.Tree
		updated, _, _ = tree.Insert(key, &entry)
		tree = updated
	}
	return &Table{root: tree.Root()}, nil
}

// normalize implements spec.md §4.A's normalization: collapse redundant
// separators and "." / ".." segments, drop any trailing slash except
// for the root. Malformed (non-absolute) input is rejected here rather
// than at resolve time — resolve never rejects, it simply won't find a
// match for something that was never validly inserted.
func normalize(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", errors.Errorf("not an absolute path: %q", p)
	}
	clean := path.Clean(p)
	if clean == "." {
		clean = "/"
	}
	return clean, nil
}

// indexKey turns a normalized prefix into the radix-tree key. A
// trailing separator is appended (except for "/" itself, which already
// is one) so that LongestPrefix only ever matches on path-segment
// boundaries: the prefix "/vfs" must not match the unrelated path
// "/vfsnot/real".
func indexKey(prefix string) []byte {
	if prefix == "/" {
		return []byte("/")
	}
	return []byte(prefix + "/")
}

// Resolve implements spec.md §4.A: find the mount entry whose
// guest_prefix is the longest path-prefix of path, and return the
// backend plus the translated path. Ties are impossible by
// constructon's duplicate-prefix check. Resolve never rejects a
// malformed path; it returns ok=false, pass-through is then up to the
// caller.
func (t *Table) Resolve(guestPath string) (entry Entry, translated string, ok bool) {
	start := time.Now()
	defer func() { metrics.MountResolveLatency.Observe(time.Since(start).Seconds()) }()

	if t == nil || t.root == nil {
		return Entry{}, "", false
	}
	clean, err := normalize(guestPath)
	if err != nil {
		return Entry{}, "", false
	}
	queryKey := indexKey(clean)

	_, raw, found := t.root.LongestPrefix(queryKey)
	if !found {
		return Entry{}, "", false
	}
	e := raw.(*Entry)

	if e.BackendRoot == "" {
		// Virtual backend: the path passed to the VFS is the
		// original guest path, unchanged.
		return *e, guestPath, true
	}

	suffix := strings.TrimPrefix(clean, e.GuestPrefix)
	suffix = strings.TrimPrefix(suffix, "/")

	joined, err := securejoin.SecureJoin(e.BackendRoot, suffix)
	if err != nil {
		// SecureJoin only fails on host I/O errors resolving
		// intermediate symlinks; treat as no match so the handler
		// falls back to pass-through rather than injecting a
		// syscall with a half-computed path.
		return Entry{}, "", false
	}
	return *e, joined, true
}

// Entries returns every mount entry in the table, ordered by guest
// prefix. It exists for diagnostics (internal/metricsserver's mount
// dump endpoint) and is never on the Resolve hot path.
func (t *Table) Entries() []Entry {
	if t == nil || t.root == nil {
		return nil
	}
	var out []Entry
	t.root.Walk(func(_ []byte, v interface{}) bool {
		out = append(out, *v.(*Entry))
		return false
	})
	return out
}
