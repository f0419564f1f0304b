// Package apperr classifies failures so callers can decide between retrying,
// falling back and surfacing them to the UI.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnknown    Kind = "unknown"
	KindInput      Kind = "input"
	KindTransport  Kind = "transport"
	KindGating     Kind = "gating"
	KindFormat     Kind = "format"
	KindFilesystem Kind = "filesystem"
	KindTimeout    Kind = "timeout"
	KindNotFound   Kind = "not_found"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Input(format string, args ...any) *Error {
	return New(KindInput, fmt.Sprintf(format, args...))
}

func Gating(format string, args ...any) *Error {
	return New(KindGating, fmt.Sprintf(format, args...))
}

func Format(format string, args ...any) *Error {
	return New(KindFormat, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Transport(msg string, err error) *Error {
	return Wrap(KindTransport, msg, err)
}

func Filesystem(msg string, err error) *Error {
	return Wrap(KindFilesystem, msg, err)
}

func Timeout(msg string) *Error {
	return New(KindTimeout, msg)
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
