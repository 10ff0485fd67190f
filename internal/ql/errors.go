package ql

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindSyntax         ErrorKind = "syntax"
	KindMismatch       ErrorKind = "type_mismatch"
	KindDivisionByZero ErrorKind = "division_by_zero"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its Kind.
var (
	ErrSyntax         = errors.New("ql: syntax error")
	ErrMismatch       = errors.New("ql: type mismatch")
	ErrDivisionByZero = errors.New("ql: division by zero")
)

// Error is returned by the parsers and the evaluator.
// Pos is a byte offset into the source and is only meaningful for syntax errors.
type Error struct {
	Kind    ErrorKind
	Message string
	Pos     int
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Kind == KindSyntax {
		return fmt.Sprintf("%s at %d: %s", e.Kind, e.Pos, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrSyntax:
		return e.Kind == KindSyntax
	case ErrMismatch:
		return e.Kind == KindMismatch
	case ErrDivisionByZero:
		return e.Kind == KindDivisionByZero
	}
	return false
}

func syntaxError(pos int, format string, args ...any) *Error {
	return &Error{Kind: KindSyntax, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

func mismatch(op string, got ...Expression) *Error {
	msg := op + " does not accept"
	for i, g := range got {
		if i > 0 {
			msg += ","
		}
		msg += " " + TypeName(g)
	}
	return &Error{Kind: KindMismatch, Message: msg}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
