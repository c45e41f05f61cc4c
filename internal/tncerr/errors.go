// Package tncerr defines the error categories the TNC distinguishes by
// propagation policy: fatal startup failure, logged-and-recovered
// transport trouble, and dropped-with-a-log-entry encode failures.
package tncerr

import "fmt"

// ConfigError is fatal at startup: unknown mode, unknown audio device,
// or a device sample rate below the modem's.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// TransportError is logged and recoverable: KISS TCP disconnects,
// rigctld connection failures. The caller retries or drops per transport.
type TransportError struct {
	Msg string
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Msg }
func (e *TransportError) Unwrap() error { return e.Err }

func NewTransportError(msg string, err error) *TransportError {
	return &TransportError{Msg: msg, Err: err}
}

// EncodeError is fatal to one send only: the packet is dropped and
// logged, everything else continues.
type EncodeError struct {
	Msg string
}

func (e *EncodeError) Error() string { return "encode: " + e.Msg }

func NewEncodeError(format string, args ...any) *EncodeError {
	return &EncodeError{Msg: fmt.Sprintf(format, args...)}
}
