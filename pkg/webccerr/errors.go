// Package webccerr provides the structured error taxonomy shared by every
// webcc component: parser, sockets, client engine, server engine.
package webccerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Kind is one of the ten stable error kinds named in the spec's error
// taxonomy (tests key off these names, so they must not be renamed).
type Kind string

const (
	Syntax      Kind = "Syntax"
	State       Kind = "State"
	Resolve     Kind = "Resolve"
	Connect     Kind = "Connect"
	Handshake   Kind = "Handshake"
	SocketRead  Kind = "SocketRead"
	SocketWrite Kind = "SocketWrite"
	Parse       Kind = "Parse"
	File        Kind = "File"
	Data        Kind = "Data"
)

// Error is the single structured carrier for every webcc error, plus the
// boolean timeout overlay described in §3 ("Error taxonomy").
type Error struct {
	Kind      Kind
	Op        string
	Detail    string
	Cause     error
	Timeout   bool
	Host      string
	Port      int
	Timestamp time.Time
}

func (e *Error) Error() string {
	addr := e.Host
	if e.Port != 0 {
		addr = fmt.Sprintf("%s:%d", e.Host, e.Port)
	}
	msg := fmt.Sprintf("[%s]", e.Kind)
	if e.Op != "" {
		msg += " " + e.Op
	}
	if addr != "" {
		msg += " " + addr
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Timeout {
		msg += " (timeout)"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is match on Kind alone, ignoring Op/Detail/Cause, which
// mirrors how callers actually want to compare these ("was this a parse
// error?") rather than deep-equal a carrier struct.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func new_(kind Kind, op, detail string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Cause: cause, Timestamp: time.Now()}
}

func NewSyntax(detail string) *Error                { return new_(Syntax, "parse", detail, nil) }
func NewState(op, detail string) *Error             { return new_(State, op, detail, nil) }
func NewResolve(host string, cause error) *Error    { e := new_(Resolve, "resolve", "", cause); e.Host = host; return e }
func NewConnect(host string, port int, cause error) *Error {
	e := new_(Connect, "connect", "", cause)
	e.Host, e.Port = host, port
	return e
}
func NewHandshake(host string, port int, cause error) *Error {
	e := new_(Handshake, "handshake", "", cause)
	e.Host, e.Port = host, port
	return e
}
func NewSocketRead(cause error) *Error  { return new_(SocketRead, "read", "", cause) }
func NewSocketWrite(cause error) *Error { return new_(SocketWrite, "write", "", cause) }
func NewParse(detail string, cause error) *Error {
	return new_(Parse, "parse", detail, cause)
}
func NewFile(op string, cause error) *Error { return new_(File, op, "", cause) }
func NewData(detail string) *Error          { return new_(Data, "data", detail, nil) }

// WithTimeout returns a copy of e with Timeout set, used by the deadline
// timer path: the same error kind is reported whether a read or connect
// phase aborted, only the overlay differs.
func (e *Error) WithTimeout() *Error {
	cp := *e
	cp.Timeout = true
	return &cp
}

// IsTimeout reports whether err (a *Error, a net.Error, or a context error)
// represents a timeout.
func IsTimeout(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Timeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// KindOf returns the Kind of err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
