package internal

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure on the checkout path carries exactly one of them,
// so callers can test with errors.Is.
var (
	ErrParse             = errors.New("malformed request")
	ErrResourceNotFound  = errors.New("resource not found")
	ErrValidation        = errors.New("validation failed")
	ErrProviderTransport = errors.New("provider unreachable")
	ErrProviderBusiness  = errors.New("provider declined")
	ErrTokenConsumed     = errors.New("token already consumed")
	ErrDispatch          = errors.New("dispatch failed")
	ErrNotConfigured     = errors.New("gate not configured")
)

// CheckoutError ties an underlying cause to one of the error kinds.
type CheckoutError struct {
	Kind error
	Op   string
	Err  error
}

func (e *CheckoutError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *CheckoutError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) *CheckoutError {
	return &CheckoutError{Kind: kind, Op: op, Err: err}
}

// ProviderError describes a failed Express Checkout call. Kind is ErrProviderTransport
// when the API could not be reached and ErrProviderBusiness when it answered with a
// negative acknowledgement.
type ProviderError struct {
	Kind          error
	Method        string
	Ack           string
	Code          string
	ShortMessage  string
	LongMessage   string
	CorrelationId string
	Err           error
}

func (e *ProviderError) Error() string {
	if errors.Is(e.Kind, ErrProviderBusiness) {
		return fmt.Sprintf("%s: ack %s; code %s; %s; correlation %s", e.Method, e.Ack, e.Code, e.LongMessage, e.CorrelationId)
	}
	return fmt.Sprintf("%s: %v", e.Method, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
