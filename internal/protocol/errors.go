package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEncoding is returned when a hex payload cannot be decoded.
	ErrMalformedEncoding = errors.New("malformed encoding")

	// ErrTransportTimeout is returned when no complete response arrived
	// within the per-byte read timeout.
	ErrTransportTimeout = errors.New("transport timeout")

	// ErrTransportError is returned when the underlying port failed.
	ErrTransportError = errors.New("transport error")

	// ErrController is matched by every *ControllerError.
	ErrController = errors.New("controller error")

	// ErrUnsupportedMount is returned when the mount code is below the
	// GOTO capability threshold.
	ErrUnsupportedMount = errors.New("unsupported mount")

	// ErrInit is matched by every *InitError.
	ErrInit = errors.New("mount initialization failed")

	// ErrStopTimeout is returned when an axis did not report stopped
	// within the polling budget.
	ErrStopTimeout = errors.New("axis did not stop")

	// ErrNotInitialized is returned by motion commands issued before a
	// successful InitMount.
	ErrNotInitialized = errors.New("mount not initialized")
)

// ControllerError is a reply carrying the '!' marker. Code is the payload
// the controller sent back, usually a single digit.
type ControllerError struct {
	Axis    AxisID
	Command Command
	Code    string
}

func (e *ControllerError) Error() string {
	return fmt.Sprintf("controller error on %s command %q: code %q (%s)",
		e.Axis, byte(e.Command), e.Code, ErrorCodeText(e.Code))
}

// Is makes errors.Is(err, ErrController) true for any ControllerError.
func (e *ControllerError) Is(target error) bool {
	return target == ErrController
}

// ErrorCodeText describes the controller error codes.
func ErrorCodeText(code string) string {
	switch code {
	case "0":
		return "unknown command"
	case "1":
		return "command length error"
	case "2":
		return "motor not stopped"
	case "3":
		return "invalid character"
	case "4":
		return "not initialized"
	case "5":
		return "driver sleeping"
	case "7":
		return "PEC training is running"
	case "8":
		return "no valid PEC data"
	default:
		return "unknown error"
	}
}

// InitError wraps the failure of one mount initialization step.
type InitError struct {
	Step string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init mount: %s: %v", e.Step, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrInit) true for any InitError.
func (e *InitError) Is(target error) bool {
	return target == ErrInit
}
