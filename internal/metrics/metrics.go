/*
 * Copyright (c) 2021. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package metrics declares the prometheus collectors a sandbox run
// exposes: syscalls handled by outcome, mount-resolve latency, and VFS
// errors by kind. Grounded on the teacher's pkg/metrics/data +
// pkg/metrics/registry split (bare vars registered into a private
// registry in init), with the metric set replaced for this domain.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var defaultLatencyBuckets = []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .05}

const outcomeLabel = "outcome"
const kindLabel = "kind"
const syscallLabel = "syscall"

var (
	// SyscallsHandled counts every syscall a Handlers method returned an
	// Outcome for, labeled by syscall name and outcome
	// (pass_through/result/rewrite).
	SyscallsHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandboxfs_syscalls_handled_total",
			Help: "Syscalls classified by the tracer, by syscall name and outcome.",
		},
		[]string{syscallLabel, outcomeLabel},
	)

	// MountResolveLatency times pkg/mount.Table.Resolve calls.
	MountResolveLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sandboxfs_mount_resolve_seconds",
			Help:    "Latency of guest-path to mount-entry resolution.",
			Buckets: defaultLatencyBuckets,
		},
	)

	// VFSErrors counts errors a VFS backend returned, by vfs.ErrorKind.
	VFSErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandboxfs_vfs_errors_total",
			Help: "Errors returned by a VFS backend, by error kind.",
		},
		[]string{kindLabel},
	)

	// GuestThreadsActive tracks how many guest threads are currently
	// having a handler's outcome applied (pkg/runner's applyOutcome).
	GuestThreadsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sandboxfs_guest_threads_active",
			Help: "Guest threads currently having a syscall handler's outcome applied.",
		},
	)
)

// Registry is the private prometheus registry internal/metricsserver
// exposes over HTTP, mirroring the teacher's pkg/metrics/registry
// pattern of keeping application metrics off the global registerer.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		SyscallsHandled,
		MountResolveLatency,
		VFSErrors,
		GuestThreadsActive,
	)
}
