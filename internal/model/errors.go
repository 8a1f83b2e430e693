package model

import (
	"errors"
	"fmt"
)

// ValidationError covers bad input, wrong trading window, and insufficient
// margin. It is always synchronous and never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError covers unknown plan identifiers and missing option
// contracts.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// NotFoundf builds a NotFoundError.
func NotFoundf(format string, args ...any) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// BrokerAPIError is an upstream broker rejection or failure. In order
// execution it triggers failover to the next candidate; in the deployment
// engine it converts only the affected plan to ERROR.
type BrokerAPIError struct {
	Broker string
	Err    error
}

func (e *BrokerAPIError) Error() string {
	return fmt.Sprintf("%s: %v", e.Broker, e.Err)
}

func (e *BrokerAPIError) Unwrap() error { return e.Err }

// BrokerAPIErr wraps err as a BrokerAPIError for the named broker.
func BrokerAPIErr(broker string, err error) error {
	return &BrokerAPIError{Broker: broker, Err: err}
}

// UnsupportedBrokerError rejects an unknown broker name before any external
// call is attempted.
type UnsupportedBrokerError struct {
	Broker string
}

func (e *UnsupportedBrokerError) Error() string {
	return "unsupported broker: " + e.Broker
}

// UnsupportedStrategyError rejects an unknown or malformed strategy before
// any external call is attempted.
type UnsupportedStrategyError struct {
	Msg string
}

func (e *UnsupportedStrategyError) Error() string { return e.Msg }
