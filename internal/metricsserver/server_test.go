/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package metricsserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfs/sandboxfs/pkg/mount"
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

func TestDescribeMountsListsEntries(t *testing.T) {
	table, err := mount.New([]mount.Entry{
		{GuestPrefix: "/data", Backend: &stubBackend{}, BackendRoot: "/host/data"},
		{GuestPrefix: "/virt", Backend: &stubBackend{virtual: true}},
	})
	require.NoError(t, err)

	srv := New(table)
	req := httptest.NewRequest(http.MethodGet, endpointMounts, nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var views []mountEntryView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	assert.Len(t, views, 2)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	table, err := mount.New(nil)
	require.NoError(t, err)

	srv := New(table)
	req := httptest.NewRequest(http.MethodGet, endpointMetrics, nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}
