package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a fetch failure.
type Kind int

// Kind enum
const (
	Network Kind = iota
	Schema
	NotFound
	Blocked
	OutOfRange
	Timeout
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case Schema:
		return "schema"
	case NotFound:
		return "not-found"
	case Blocked:
		return "blocked"
	case OutOfRange:
		return "out-of-range"
	case Timeout:
		return "timeout"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the error returned by a Strategy.
// Every fetch error is recoverable: the chain advances to the next strategy.
type Error struct {
	Kind   Kind
	Source string
	Code   string
	URL    string
	Err    error
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	var sInner string
	if e.Err != nil {
		sInner = ": " + e.Err.Error()
	}
	if e.URL != "" {
		return fmt.Sprintf("%s: %s error for %q in url %q%s", e.Source, e.Kind, e.Code, e.URL, sInner)
	}
	return fmt.Sprintf("%s: %s error for %q%s", e.Source, e.Kind, e.Code, sInner)
}

// NewError builds a strategy Error of the given kind.
func NewError(kind Kind, source, code, url string, err error) *Error {
	return &Error{Kind: kind, Source: source, Code: code, URL: url, Err: err}
}

// WrapTransport classifies a transport-level error as Timeout or Network.
// A deadline expiry is reported as Timeout; the chain treats it exactly
// like Network and proceeds to the next strategy.
func WrapTransport(source, code, url string, err error) *Error {
	kind := Network
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		kind = Timeout
	}
	return NewError(kind, source, code, url, err)
}

// KindOf returns the Kind of a strategy error,
// or Network for any other error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Network
}
