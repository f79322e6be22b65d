// Package errs provides the error taxonomy shared by the ingest pipeline
// and the query/RPC surface.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for RPC error-code mapping and log routing.
type Kind string

const (
	KindConfig     Kind = "config"
	KindNetwork    Kind = "network"
	KindParse      Kind = "parse"
	KindDatabase   Kind = "database"
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindMessenger  Kind = "messenger"
)

// Error is the shared error type: a Kind plus a wrapped cause. Code is an
// optional sub-classification within Kind (e.g. distinguishing which
// validation rule failed) that RPC error mapping can surface instead of
// collapsing every error of a Kind to one code. Zero means "no sub-code."
type Error struct {
	Kind Kind
	Code int
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with no wrapped cause and no sub-code.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// NewWithCode builds an Error carrying a Kind-scoped sub-code, for callers
// that need to distinguish several error shapes within the same Kind (the
// validation taxonomy in package query, for instance).
func NewWithCode(kind Kind, code int, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Wrap adds context and a Kind to err. It returns nil if err is nil, mirroring
// the teacher's plain Wrap helper.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err (or anything it wraps) is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
