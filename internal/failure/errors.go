package failure

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies why an operation failed so callers can choose between retrying and aborting
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindInvalidRedirect
	KindConsentDenied
	KindStateMismatch
	KindExchange
	KindInput
	KindTimeout
	KindCanceled
	KindTransport
	KindUnauthorized
	KindRateLimited
	KindUpstream
	KindDecode
	KindAPI
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindInvalidRedirect:
		return "invalid_redirect"
	case KindConsentDenied:
		return "consent_denied"
	case KindStateMismatch:
		return "state_mismatch"
	case KindExchange:
		return "exchange"
	case KindInput:
		return "input"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream"
	case KindDecode:
		return "decode"
	case KindAPI:
		return "api"
	default:
		return "unknown"
	}
}

// Error is the failure type shared by the authenticators, the poller and the scheduler
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Err     error
}

func New(op string, kind Kind, message string) *Error {
	return &Error{
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed (%s): %s: %v", e.Op, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed (%s): %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// Is matches another *Error by kind, so errors.Is(err, failure.New("", KindCanceled, "")) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Retryable reports whether the failure is transient
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindRateLimited, KindUpstream:
		return true
	default:
		return false
	}
}

// FromContext converts a context error into a canceled or timeout failure
func FromContext(op string, err error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(op, KindTimeout, "deadline exceeded").WithCause(err)
	}
	return New(op, KindCanceled, "operation canceled").WithCause(err)
}
