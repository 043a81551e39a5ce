package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for transport failures. Every failing call returns an *Error
// wrapping exactly one of these.
var (
	ErrUnreachable = errors.New("hub unreachable")
	ErrTimeout     = errors.New("hub timeout")
	ErrStatus      = errors.New("hub error status")
	ErrRemote      = errors.New("hub reported error")
	ErrNoBackend   = errors.New("no hub backend")
	ErrUnknownCall = errors.New("unknown remote call")
)

// Error describes a failed remote call. Message carries the remote error text
// (or "HTTP <code>") so that it can be shown to the user.
type Error struct {
	Method     string
	Channel    string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s via %s: %v", e.Method, e.Channel, e.Err)
	}
	return fmt.Sprintf("%s via %s: %v: %s", e.Method, e.Channel, e.Err, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// classifyError maps network-level errors to sentinel errors.
func classifyError(method, channel string, err error) error {
	var terr *Error
	if errors.As(err, &terr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Method: method, Channel: channel, Message: err.Error(), Err: ErrTimeout}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Method: method, Channel: channel, Message: err.Error(), Err: ErrTimeout}
	}

	return &Error{Method: method, Channel: channel, Message: err.Error(), Err: ErrUnreachable}
}
