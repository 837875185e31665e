// Package talkerr classifies every failure the talk-page pipeline can
// produce. Parsing, locating and transforming functions either return a
// definite result or an *Error with one of the kinds below; nothing in the
// pipeline throws an unclassified error.
package talkerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindParse covers failures of the heuristic parsing/locating/transform
	// stages. Always locally recoverable: the caller shows a message and the
	// user retries or edits by hand.
	KindParse Kind = "parse"
	// KindAPI is a server-reported failure (see Code for the server code).
	KindAPI Kind = "api"
	// KindNetwork is a transport failure before any server verdict.
	KindNetwork Kind = "network"
	// KindInternal is an unexpected internal failure.
	KindInternal Kind = "internal"
	// KindUI is a user-facing precondition violation, e.g. a second submit
	// racing a pending one.
	KindUI Kind = "ui"
)

type Code string

const (
	CodeLocateComment        Code = "locateComment"
	CodeLocateSection        Code = "locateSection"
	CodeNumberedList         Code = "numberedList"
	CodeNumberedListTable    Code = "numberedList-table"
	CodeClosed               Code = "closed"
	CodeFindPlace            Code = "findPlace"
	CodeDeleteRepliesComment Code = "delete-repliesToComment"
	CodeDeleteRepliesSection Code = "delete-repliesInSection"
	CodeCommentNotFound      Code = "commentLinks-commentNotFound"

	CodeMissing      Code = "missing"
	CodeInvalid      Code = "invalid"
	CodeEditConflict Code = "editconflict"
)

type Error struct {
	Kind Kind
	// Code refines the kind: a parse sub-condition or an API server code.
	Code Code
	Msg  string
	Err  error

	// Recoverable reports whether the caller may keep the edit buffer open
	// and retry. False only for the second step of a cross-page move that
	// failed after the first step committed.
	Recoverable bool
}

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.Code != "" {
		s += "/" + string(e.Code)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Parse builds a recoverable parse-kind error.
func Parse(code Code, format string, args ...any) *Error {
	return &Error{Kind: KindParse, Code: code, Msg: fmt.Sprintf(format, args...), Recoverable: true}
}

// API wraps a server-reported error code.
func API(code Code, msg string) *Error {
	return &Error{Kind: KindAPI, Code: code, Msg: msg, Recoverable: true}
}

// Network wraps a transport failure.
func Network(err error) *Error {
	return &Error{Kind: KindNetwork, Err: err, Recoverable: true}
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Err: err, Recoverable: true}
}

// UI builds a precondition-violation error.
func UI(format string, args ...any) *Error {
	return &Error{Kind: KindUI, Msg: fmt.Sprintf(format, args...), Recoverable: true}
}

// Unrecoverable marks e as terminal for the current edit buffer and returns it.
func Unrecoverable(e *Error) *Error {
	e.Recoverable = false
	return e
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var te *Error
	ok := errors.As(err, &te)
	return te, ok
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	te, ok := As(err)
	return ok && te.Code == code
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	te, ok := As(err)
	return ok && te.Kind == kind
}
