/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package errdefs classifies errors the CORE produces on its two
// non-guest-visible error planes (spec.md §7): tracer-visible handler
// errors (guest-memory faults, scratch-allocation failure), and the
// VFS error taxonomy (spec.md §3), exposed as Is* predicates in the
// style the teacher used for its own daemon-lifecycle errors below.
package errdefs

import (
	"fmt"
	"net"
	"strings"

	"github.com/pkg/errors"

	"github.com/agentfs/sandboxfs/pkg/vfs"
)

const signalKilled = "signal: killed"

var (
	// ErrGuestFault marks an error as originating from a failed
	// guest-memory read or write (spec.md §7 plane 2).
	ErrGuestFault = errors.New("guest memory fault")

	// ErrScratchExhausted marks a failed scratch-stack reservation.
	ErrScratchExhausted = errors.New("scratch allocation failed")
)

// NewGuestFault wraps cause so IsGuestFault reports true for it.
func NewGuestFault(cause error) error {
	return fmt.Errorf("%w: %v", ErrGuestFault, cause)
}

// NewScratchExhausted wraps cause so IsScratchExhausted reports true
// for it.
func NewScratchExhausted(cause error) error {
	return fmt.Errorf("%w: %v", ErrScratchExhausted, cause)
}

// IsGuestFault returns true if err is due to a guest-memory fault.
func IsGuestFault(err error) bool {
	return errors.Is(err, ErrGuestFault)
}

// IsScratchExhausted returns true if err is due to a failed scratch
// reservation.
func IsScratchExhausted(err error) bool {
	return errors.Is(err, ErrScratchExhausted)
}

// IsNotFound returns true if err is a *vfs.Error of kind NotFound.
func IsNotFound(err error) bool { return vfs.KindOf(err) == vfs.NotFound }

// IsPermissionDenied returns true if err is a *vfs.Error of kind
// PermissionDenied.
func IsPermissionDenied(err error) bool { return vfs.KindOf(err) == vfs.PermissionDenied }

// IsAlreadyExists returns true if err is a *vfs.Error of kind
// AlreadyExists. Generalized from the teacher's snapshot-lifecycle
// IsAlreadyExists (which compared against a single sentinel) to the
// VFS error-kind taxonomy this CORE actually deals in.
func IsAlreadyExists(err error) bool { return vfs.KindOf(err) == vfs.AlreadyExists }

// IsSignalKilled returns true if err describes a process that was
// killed by a signal — used when the supervisor reports the traced
// child's exit status.
func IsSignalKilled(err error) bool {
	return err != nil && strings.Contains(err.Error(), signalKilled)
}

// IsConnectionClosed returns true if err is due to the tracer's
// control connection being closed, e.g. on supervisor shutdown.
func IsConnectionClosed(err error) bool {
	opErr, ok := err.(*net.OpError)
	return ok && opErr.Err.Error() == "use of closed network connection"
}
