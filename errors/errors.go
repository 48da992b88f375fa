// Package errors defines the error taxonomy for the wallet client.
//
// All wallet errors are represented as WalletError, which provides:
//   - Code: Machine-readable error identifier
//   - Message: Human-readable error description
//   - Layer: Which component produced the error (identity, network, builder, query, submit, dispatch, config)
//   - Cause: Underlying error, if any
//   - Context: Additional error details (account address, result codes, etc.)
//
// Use the provided constructor functions (NewNetworkError, NewSubmitError, etc.)
// to create properly typed errors with automatic layer assignment.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is a machine-readable error identifier.
type Code string

// Error codes - Identity / Builder Layer (local, never retried)
const (
	INVALID_FORMAT Code = "INVALID_FORMAT"
	INVALID_AMOUNT Code = "INVALID_AMOUNT"
	MEMO_TOO_LONG  Code = "MEMO_TOO_LONG"
	BUILD_FAILED   Code = "BUILD_FAILED"
	SIGNER_ERROR   Code = "SIGNER_ERROR"
	CONFIG_INVALID Code = "CONFIG_INVALID"
)

// Error codes - Network / Query Layer
const (
	NETWORK_ERROR      Code = "NETWORK_ERROR"
	SERVER_ERROR       Code = "SERVER_ERROR"
	ACCOUNT_NOT_FOUND  Code = "ACCOUNT_NOT_FOUND"
	AMBIGUOUS_RESPONSE Code = "AMBIGUOUS_RESPONSE"
)

// Error codes - Submission / Dispatch Layer
const (
	SUBMISSION_FAILED  Code = "SUBMISSION_FAILED"
	TRANSITION_INVALID Code = "TRANSITION_INVALID"
	UNKNOWN_ERROR      Code = "UNKNOWN_ERROR"
)

// Context keys attached to errors.
const (
	ContextAccount         = "account"
	ContextTransactionCode = "transaction_code"
	ContextOperationCodes  = "operation_codes"
	ContextStatus          = "status"
)

// WalletError is the base error type for all wallet client errors.
type WalletError struct {
	Code    Code
	Message string
	Layer   string // "identity", "network", "builder", "query", "submit", "dispatch", "config"
	Cause   error
	Context map[string]any
}

// Error returns a formatted error string.
func (e *WalletError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Layer, e.Code, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error, enabling error chain inspection.
func (e *WalletError) Unwrap() error {
	return e.Cause
}

// With attaches a context value and returns the error for chaining.
func (e *WalletError) With(key string, value any) *WalletError {
	e.Context[key] = value
	return e
}

func newError(layer string, code Code, message string, cause error) *WalletError {
	return &WalletError{
		Code:    code,
		Message: message,
		Layer:   layer,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// NewIdentityError creates an identity resolution error.
func NewIdentityError(code Code, message string, cause error) *WalletError {
	return newError("identity", code, message, cause)
}

// NewNetworkError creates a network layer error.
func NewNetworkError(code Code, message string, cause error) *WalletError {
	return newError("network", code, message, cause)
}

// NewBuilderError creates a transaction builder error.
func NewBuilderError(code Code, message string, cause error) *WalletError {
	return newError("builder", code, message, cause)
}

// NewQueryError creates a query layer error.
func NewQueryError(code Code, message string, cause error) *WalletError {
	return newError("query", code, message, cause)
}

// NewSubmitError creates a submission pipeline error.
func NewSubmitError(code Code, message string, cause error) *WalletError {
	return newError("submit", code, message, cause)
}

// NewConfigError creates a configuration error.
func NewConfigError(code Code, message string, cause error) *WalletError {
	return newError("config", code, message, cause)
}

// NewDispatchError creates a dispatch layer error.
func NewDispatchError(code Code, message string, cause error) *WalletError {
	return newError("dispatch", code, message, cause)
}

// Is checks if the target error is a WalletError with the same code.
func (e *WalletError) Is(target error) bool {
	if target == nil {
		return false
	}
	other, ok := target.(*WalletError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// As finds the first WalletError in err's tree and assigns it.
func As(err error, target **WalletError) bool {
	return stderrors.As(err, target)
}

// CodeOf returns the code of the first WalletError in err's chain, or "".
func CodeOf(err error) Code {
	var werr *WalletError
	if As(err, &werr) {
		return werr.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
