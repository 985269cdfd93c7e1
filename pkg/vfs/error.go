/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package vfs

import "fmt"

// ErrorKind is the abstract VFS error taxonomy. Backends report one of
// these; kinds not enumerated here default to IoError by convention of
// NewError's callers.
type ErrorKind int

const (
	NotFound ErrorKind = iota
	PermissionDenied
	AlreadyExists
	NotADirectory
	IsADirectory
	InvalidArgument
	IoError
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case PermissionDenied:
		return "PermissionDenied"
	case AlreadyExists:
		return "AlreadyExists"
	case NotADirectory:
		return "NotADirectory"
	case IsADirectory:
		return "IsADirectory"
	case InvalidArgument:
		return "InvalidArgument"
	default:
		return "IoError"
	}
}

// Error is the error type every VFS backend returns. The syscall layer
// only ever inspects Kind; Cause is carried for logging.
type Error struct {
	Kind  ErrorKind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vfs: %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("vfs: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError wraps cause as a VFS error of the given kind.
func NewError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// KindOf extracts the ErrorKind carried by err, defaulting to IoError
// for any error that isn't a *vfs.Error (including nil causes wrapped
// by something else). Per spec.md §3: "Other kinds not enumerated here
// default to IoError".
func KindOf(err error) ErrorKind {
	var verr *Error
	if e, ok := err.(*Error); ok {
		verr = e
	} else {
		return IoError
	}
	return verr.Kind
}
