package labctl

import (
	"errors"
	"fmt"
)

// Predefined error types for robust error handling
var (
	ErrDeviceNotFound  = errors.New("serial device not found")
	ErrInvalidBaudRate = errors.New("invalid baud rate")
	ErrInvalidConfig   = errors.New("invalid serial configuration")
	ErrPortClosed      = errors.New("serial port is closed")

	// Device protocol errors
	ErrDeviceTimeout   = errors.New("device did not reply in time")
	ErrProtocol        = errors.New("unexpected device reply")
	ErrParse           = errors.New("malformed table data")
	ErrInvalidArgument = errors.New("invalid argument")
)

// ProtocolError describes a reply that did not have the expected shape.
type ProtocolError struct {
	Command string
	Reply   []byte
	Reason  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: reply %q to %s: %s", ErrProtocol, e.Reply, e.Command, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

// ParseError reports the first malformed token of a table source.
type ParseError struct {
	Index int
	Token string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: token %d (%q) is not a hex byte sequence", ErrParse, e.Index, e.Token)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// StepError names the step of a composite operation that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error { return e.Err }
