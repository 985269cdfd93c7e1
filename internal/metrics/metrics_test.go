/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSyscallsHandledIncrementsByLabel(t *testing.T) {
	SyscallsHandled.Reset()
	SyscallsHandled.WithLabelValues("statx", "result").Inc()
	SyscallsHandled.WithLabelValues("statx", "result").Inc()
	SyscallsHandled.WithLabelValues("linkat", "rewrite").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(SyscallsHandled.WithLabelValues("statx", "result")))
	assert.Equal(t, float64(1), testutil.ToFloat64(SyscallsHandled.WithLabelValues("linkat", "rewrite")))
}

func TestRegistryGatherIncludesDeclaredMetrics(t *testing.T) {
	families, err := Registry.Gather()
	assert.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["sandboxfs_syscalls_handled_total"])
	assert.True(t, names["sandboxfs_mount_resolve_seconds"])
	assert.True(t, names["sandboxfs_vfs_errors_total"])
	assert.True(t, names["sandboxfs_guest_threads_active"])
}
