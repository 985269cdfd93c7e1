/*
 * Copyright (c) 2021. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package metricsserver exposes a sandbox run's prometheus metrics and
// a mount-table dump over HTTP, in the same "experimental debug
// endpoints" spirit as the teacher's pkg/system.Controller, but with
// gorilla/mux routing a much smaller surface than that package's
// daemon-lifecycle API.
package metricsserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/containerd/log"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentfs/sandboxfs/internal/metrics"
	"github.com/agentfs/sandboxfs/pkg/mount"
)

const (
	endpointMetrics string = "/metrics"
	endpointMounts  string = "/api/v1/mounts"
)

// Server is a debug HTTP server bound to a unix socket, exposing the
// sandbox run's prometheus metrics and mount table for inspection.
type Server struct {
	mounts *mount.Table
	router *mux.Router
}

// mountEntryView is the JSON shape of one pkg/mount.Entry, grounded on
// the teacher's daemonInfo/jsonResponse pattern in pkg/system.
type mountEntryView struct {
	GuestPrefix string `json:"guest_prefix"`
	BackendRoot string `json:"backend_root,omitempty"`
	Virtual     bool   `json:"virtual"`
}

// New builds a Server over mounts; it does not start listening until
// Serve is called.
func New(mounts *mount.Table) *Server {
	s := &Server{mounts: mounts, router: mux.NewRouter()}
	s.router.Handle(endpointMetrics, promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})).Methods(http.MethodGet)
	s.router.HandleFunc(endpointMounts, s.describeMounts).Methods(http.MethodGet)
	return s
}

func (s *Server) describeMounts(w http.ResponseWriter, _ *http.Request) {
	entries := s.mounts.Entries()
	views := make([]mountEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, mountEntryView{
			GuestPrefix: e.GuestPrefix,
			BackendRoot: e.BackendRoot,
			Virtual:     e.Backend.IsVirtual(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(views); err != nil {
		log.L.Errorf("encode mount table: %s", err)
	}
}

// Serve listens on a unix socket at addr and blocks serving the debug
// endpoints until ctx is canceled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("unix", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}

	httpServer := &http.Server{Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		return httpServer.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
