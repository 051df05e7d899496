package portal

import (
	"errors"
	"fmt"
)

// Kind classifies a failed backend call.
type Kind int

const (
	KindServer Kind = iota
	KindUnauthenticated
	KindEventFull
	KindAlreadyRegistered
	KindRejected
	KindNetwork
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindEventFull:
		return "event_full"
	case KindAlreadyRegistered:
		return "already_registered"
	case KindRejected:
		return "rejected"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	default:
		return "server"
	}
}

// Error codes sent by the backend in failure bodies.
const (
	CodeEventFull         = "EVENT_FULL"
	CodeAlreadyRegistered = "ALREADY_REGISTERED"
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeInvalidSignature  = "INVALID_SIGNATURE"
)

// Error is returned by every Client call that did not succeed.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: http %d", e.Kind, e.Status)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindServer when err is not an *Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindServer
}

// MessageOf returns the backend message carried by err, if any.
func MessageOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return ""
}
