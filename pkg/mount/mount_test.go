/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package mount

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfs/sandboxfs/pkg/vfs"
)

type stubBackend struct{ virtual bool }

func (s *stubBackend) IsVirtual() bool { return s.virtual }
func (s *stubBackend) Stat(context.Context, string) (vfs.StatRecord, error) {
	return vfs.StatRecord{}, nil
}
func (s *stubBackend) Lstat(context.Context, string) (vfs.StatRecord, error) {
	return vfs.StatRecord{}, nil
}
func (s *stubBackend) Readlink(context.Context, string) (string, error) { return "", nil }
func (s *stubBackend) Symlink(context.Context, string, string) error    { return nil }
func (s *stubBackend) Link(context.Context, string, string) error      { return nil }

func TestResolveLongestPrefix(t *testing.T) {
	real := &stubBackend{}
	virtual := &stubBackend{virtual: true}

	table, err := New([]Entry{
		{GuestPrefix: "/data", Backend: real, BackendRoot: "/host/data"},
		{GuestPrefix: "/data/virtual", Backend: virtual},
	})
	require.NoError(t, err)

	entry, translated, ok := table.Resolve("/data/file.txt")
	require.True(t, ok)
	assert.Same(t, real, entry.Backend)
	assert.Equal(t, "/host/data/file.txt", translated)

	entry, _, ok = table.Resolve("/data/virtual/db")
	require.True(t, ok)
	assert.Same(t, virtual, entry.Backend)

	_, _, ok = table.Resolve("/datanot/real")
	assert.False(t, ok, "prefix match must respect path segment boundaries")

	_, _, ok = table.Resolve("/unrelated")
	assert.False(t, ok)
}

func TestNewRejectsDuplicatePrefix(t *testing.T) {
	backend := &stubBackend{}
	_, err := New([]Entry{
		{GuestPrefix: "/data", Backend: backend},
		{GuestPrefix: "/data", Backend: backend},
	})
	assert.Error(t, err)
}

func TestNewRejectsRelativePrefix(t *testing.T) {
	_, err := New([]Entry{{GuestPrefix: "data", Backend: &stubBackend{}}})
	assert.Error(t, err)
}

func TestResolveNormalizesPath(t *testing.T) {
	real := &stubBackend{}
	table, err := New([]Entry{{GuestPrefix: "/a/b", Backend: real, BackendRoot: "/host"}})
	require.NoError(t, err)

	_, translated, ok := table.Resolve("/a/./b/../b/c")
	require.True(t, ok)
	assert.Equal(t, "/host/c", translated)
}

func TestEntriesListsEveryMount(t *testing.T) {
	table, err := New([]Entry{
		{GuestPrefix: "/data", Backend: &stubBackend{}, BackendRoot: "/host/data"},
		{GuestPrefix: "/virt", Backend: &stubBackend{virtual: true}},
	})
	require.NoError(t, err)

	entries := table.Entries()
	assert.Len(t, entries, 2)

	prefixes := map[string]bool{}
	for _, e := range entries {
		prefixes[e.GuestPrefix] = true
	}
	assert.True(t, prefixes["/data"])
	assert.True(t, prefixes["/virt"])
}

func TestEntriesOnNilTable(t *testing.T) {
	var table *Table
	assert.Nil(t, table.Entries())
}
