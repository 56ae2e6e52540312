// Package errs defines the error kinds spec §7 distinguishes, so
// callers can classify a failure (log it, retry it, surface it to the
// UI shell) without string-matching error text.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the five error categories spec §7 names. Auth errors
// (a brute-force attempt refused by the target) are deliberately not
// a Kind here — per spec §7 they are "expected, not surfaced" and the
// bruteforce package classifies them as an Outcome, not an error.
type Kind int

const (
	// Config is a missing or malformed input from the UI or a DB row.
	Config Kind = iota
	// IO is a connect failure, timeout, DNS lookup, or raw-socket
	// permission denial.
	IO
	// Persistence is a DB-locked or constraint-violation error.
	Persistence
	// Script is a plugin compile failure, missing entry point, or
	// runtime panic inside a plugin.
	Script
	// Protocol is a malformed TLS handshake, oversized header, or
	// invalid HTTP framing.
	Protocol
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case IO:
		return "io"
	case Persistence:
		return "persistence"
	case Script:
		return "script"
	case Protocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with the kind and operation that
// produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns nil if err is nil, otherwise an *Error of the given
// kind wrapping err. Wrapping a nil error is a no-op so callers can
// write `return errs.Wrap(errs.IO, "op", err)` unconditionally.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or any error it wraps) is an *Error of the
// given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
