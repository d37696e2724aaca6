package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is matched by every *ConfigurationError.
	ErrInvalidConfiguration = errors.New("invalid bridge configuration")
	// ErrForwardingFailed is matched by every *ForwardingError.
	ErrForwardingFailed = errors.New("forwarding failed")
	// ErrNotRunning is returned for deliveries that arrive outside a running session.
	ErrNotRunning = errors.New("bridge is not running")
	// ErrNilMessage is returned when the client delivers a nil message or handle.
	ErrNilMessage = errors.New("nil message or acknowledger")

	errMissing = errors.New("required value is missing")
)

// ConfigurationError reports a subscription identity or credential problem
// detected at Start.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrInvalidConfiguration, e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// ForwardingError wraps a consumer failure after the ack policy was applied.
type ForwardingError struct {
	MessageID string
	Mode      AckMode
	Err       error
}

func (e *ForwardingError) Error() string {
	return fmt.Sprintf("forward message %s (ack mode %s): %v", e.MessageID, e.Mode, e.Err)
}

func (e *ForwardingError) Unwrap() error { return e.Err }

func (e *ForwardingError) Is(target error) bool {
	return target == ErrForwardingFailed
}
