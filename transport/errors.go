package transport

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the transport layer. Callers classify failures with
// errors.Is.
var (
	// ErrInvalidArguments indicates a bad component id, port or address string
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrConstruction indicates a socket or data-path attachment could not be created
	ErrConstruction = errors.New("construction failed")

	// ErrNetwork indicates the bind retry space was exhausted
	ErrNetwork = errors.New("network error")

	// ErrReceiveConnected indicates a port already has an active receive callback
	ErrReceiveConnected = errors.New("receive callback already connected")

	// ErrUnknownDestination indicates a destination that was never added to the port
	ErrUnknownDestination = errors.New("unknown destination")

	// ErrPortClosed indicates an operation on a port whose socket has been closed
	ErrPortClosed = errors.New("port closed")
)

// OpError represents a transport error with the operation and address involved.
type OpError struct {
	Op   string // operation that caused the error
	Addr string // address if relevant
	Err  error  // underlying error
}

func (e *OpError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("mediamux %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("mediamux %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// newOpError wraps cause under kind so that both errors.Is(err, kind) and
// errors.Is(err, cause) hold.
func newOpError(op, addr string, kind, cause error) *OpError {
	err := kind
	if cause != nil {
		err = fmt.Errorf("%w: %w", kind, cause)
	}
	return &OpError{
		Op:   op,
		Addr: addr,
		Err:  err,
	}
}
