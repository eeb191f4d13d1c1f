package errcode

import (
	"errors"

	"sercomspi-go/drivers/sercomspi"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK                Code = "ok"
	Busy              Code = "busy"
	Unsupported       Code = "unsupported"
	InvalidParams     Code = "invalid_params"
	InvalidPayload    Code = "invalid_payload"
	UnknownCapability Code = "unknown_capability"
	HALNotReady       Code = "hal_not_ready"
	InvalidTopic      Code = "invalid_topic"

	InvalidPinSelection Code = "invalid_pin_selection"
	UnsupportedInstance Code = "unsupported_instance"
	SyncTimeout         Code = "sync_timeout"
	InstanceInUse       Code = "instance_in_use"
	Timeout             Code = "timeout"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap attaches c to err. A nil err stays nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Msg: err.Error(), Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return MapDriverErr(err)
}

// MapDriverErr maps low-level driver errors to a Code.
func MapDriverErr(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, sercomspi.ErrInvalidPinSelection):
		return InvalidPinSelection
	case errors.Is(err, sercomspi.ErrUnsupportedInstance):
		return UnsupportedInstance
	case errors.Is(err, sercomspi.ErrSyncTimeout):
		return SyncTimeout
	case errors.Is(err, sercomspi.ErrInvalidConfig):
		return InvalidParams
	}
	return Error
}
