// Package kerr defines the structured error taxonomy shared by every
// kernel subsystem, from the page allocator up through the SVC
// dispatcher.
package kerr

import (
	"errors"
	"fmt"
)

// Code is a high-level error category returned across an SVC boundary.
type Code string

const (
	CodeNotFound      Code = "not found"
	CodeNoMemory      Code = "no memory"
	CodeNotSupported  Code = "not supported"
	CodeArgument      Code = "bad argument"
	CodeBadHandle     Code = "bad handle"
	CodeAlreadyExists Code = "already exists"
	CodeBadName       Code = "bad name"
	CodeResourceLimit Code = "resource limit"
	CodeCancelled     Code = "cancelled"
	CodeBusy          Code = "busy"
)

// result is the negative SVC return value for each code, following
// spec.md's convention of negative-for-error, non-negative-for-success.
var result = map[Code]int32{
	CodeNotFound:      -1,
	CodeNoMemory:       -2,
	CodeNotSupported:   -3,
	CodeArgument:       -4,
	CodeBadHandle:      -5,
	CodeAlreadyExists:  -6,
	CodeBadName:        -7,
	CodeResourceLimit:  -8,
	CodeCancelled:      -9,
	CodeBusy:           -10,
}

// Error is a structured kernel error with enough context to identify
// the failing subsystem and operation.
type Error struct {
	Op    string // operation that failed, e.g. "Sbrk", "PageAlloc"
	Code  Code
	Tag   string // 4-byte driver/server tag, empty if not applicable
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Tag != "" {
		return fmt.Sprintf("lupi: %s: %s (tag=%s)", e.Op, msg, e.Tag)
	}
	return fmt.Sprintf("lupi: %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// Result returns the negative SVC return value for this error's code.
func (e *Error) Result() int32 {
	if r, ok := result[e.Code]; ok {
		return r
	}
	return -1
}

// New creates a structured kernel error.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WithTag attaches a 4-byte driver/server tag to the error.
func (e *Error) WithTag(tag string) *Error {
	e2 := *e
	e2.Tag = tag
	return &e2
}

// Wrap wraps an arbitrary error with kernel operation context, tagging
// it NotSupported unless it is already a *Error.
func Wrap(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	var ke *Error
	if errors.As(inner, &ke) {
		return &Error{Op: op, Code: ke.Code, Tag: ke.Tag, Msg: ke.Msg, Inner: ke.Inner}
	}
	return &Error{Op: op, Code: CodeNotSupported, Msg: inner.Error(), Inner: inner}
}

// Is reports whether err's code matches code.
func Is(err error, code Code) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Code == code
	}
	return false
}

// ResultOf converts any error into the SVC negative-result convention;
// a nil error yields 0.
func ResultOf(err error) int32 {
	if err == nil {
		return 0
	}
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Result()
	}
	return -1
}
