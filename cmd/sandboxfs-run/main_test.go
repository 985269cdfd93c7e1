/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfs/sandboxfs/pkg/sandboxconfig"
)

func TestBuildMountTableWiresEachBackendKind(t *testing.T) {
	cfg := &sandboxconfig.Config{
		Mounts: []sandboxconfig.MountEntry{
			{GuestPrefix: "/mnt/real", Backend: sandboxconfig.BackendPassthrough, BackendRoot: "/host/real"},
			{GuestPrefix: "/mnt/mem", Backend: sandboxconfig.BackendMemVFS},
			{GuestPrefix: "/mnt/db", Backend: sandboxconfig.BackendDBVFS, BackendRoot: t.TempDir()},
		},
	}

	table, err := buildMountTable(cfg)
	require.NoError(t, err)

	entry, _, ok := table.Resolve("/mnt/real/file")
	require.True(t, ok)
	assert.False(t, entry.Backend.IsVirtual())

	entry, _, ok = table.Resolve("/mnt/mem/file")
	require.True(t, ok)
	assert.True(t, entry.Backend.IsVirtual())

	entry, _, ok = table.Resolve("/mnt/db/file")
	require.True(t, ok)
	assert.True(t, entry.Backend.IsVirtual())
}

func TestBuildMountTableRejectsUnknownBackend(t *testing.T) {
	cfg := &sandboxconfig.Config{
		Mounts: []sandboxconfig.MountEntry{
			{GuestPrefix: "/mnt/odd", Backend: sandboxconfig.Backend("nope")},
		},
	}
	_, err := buildMountTable(cfg)
	assert.Error(t, err)
}
