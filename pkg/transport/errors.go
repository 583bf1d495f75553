package transport

import (
	"errors"
	"fmt"
)

// Kind classifies a transport error.
type Kind uint8

const (
	KindConnection Kind = iota + 1
	KindTransport
	KindConfig
	KindIO
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindTransport:
		return "transport"
	case KindConfig:
		return "config"
	case KindIO:
		return "io"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

var (
	ErrNotConnected = &Error{Kind: KindTransport, Msg: "not connected"}
)

// Error is the shared error vocabulary of the library. Every failure
// crossing a protocol boundary is wrapped into one before it reaches the
// session facades.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	label := e.Kind.String() + " error"
	if e.Kind == KindOther || e.Kind == 0 {
		label = "error"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", label, e.Msg)
	}
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", label, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s: %s", label, e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
	}
	return false
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func ConnectionError(err error, format string, args ...any) *Error {
	return newError(KindConnection, err, format, args...)
}

func TransportError(err error, format string, args ...any) *Error {
	return newError(KindTransport, err, format, args...)
}

func ConfigError(err error, format string, args ...any) *Error {
	return newError(KindConfig, err, format, args...)
}

func IOError(err error) *Error {
	return &Error{Kind: KindIO, Err: err}
}

func OtherError(err error, format string, args ...any) *Error {
	return newError(KindOther, err, format, args...)
}

// KindOf reports the Kind carried by err, or zero when err is not part of
// the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
