// Package errors defines typed errors with categories for user-friendly reporting.
// The taxonomy separates the outcomes an operator must treat differently:
// a security rejection (the LLM produced something unsafe), an unreachable
// upstream (network/model/database down), a database error on an allowed
// query, a declined confirmation, and a non-fatal persistence warning.
//
// The package supports wrapping underlying errors while maintaining error kind
// information, making it easier to handle different types of failures appropriately.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// SecurityRejected indicates the read-only guard rejected generated SQL.
	// Never retried; always surfaced verbatim with the triggering reason.
	SecurityRejected Kind = "security_rejected"
	// UpstreamUnavailable indicates the LLM server or the database connection failed.
	UpstreamUnavailable Kind = "upstream_unavailable"
	// ExecutionFailed indicates allowed SQL errored at the database.
	ExecutionFailed Kind = "execution_failed"
	// Cancelled indicates the user declined execution. A normal terminal
	// state, not a failure.
	Cancelled Kind = "cancelled"
	// PersistenceWarning indicates a history write failed. Non-fatal; the
	// primary answer is still returned.
	PersistenceWarning Kind = "persistence_warning"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of err if it is (or wraps) an *E, or "" otherwise.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsCancelled reports whether err is a declined confirmation.
func IsCancelled(err error) bool { return KindOf(err) == Cancelled }
