// Package domain holds the pipeline's shared vocabulary: trade
// parameters, results and the classified error taxonomy every
// component boundary maps into.
package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable machine-readable failure class.
type ErrorCode string

const (
	CodeNetworkMismatch             ErrorCode = "network-mismatch"
	CodeInsufficientFunds           ErrorCode = "insufficient-funds"
	CodeInsufficientShares          ErrorCode = "insufficient-shares"
	CodeOrderTooSmall               ErrorCode = "order-too-small"
	CodeNoLiquidity                 ErrorCode = "no-liquidity"
	CodeCredentialsExpired          ErrorCode = "credentials-expired"
	CodeCredentialAcquisitionFailed ErrorCode = "credential-acquisition-failed"
	CodeDeploymentFailed            ErrorCode = "deployment-failed"
	CodeAllowanceFailed             ErrorCode = "allowance-failed"
	CodeUserRejectedSignature       ErrorCode = "user-rejected-signature"
	CodeOrderRejected               ErrorCode = "order-rejected"
	CodeBusy                        ErrorCode = "busy"
)

// TradeError is a classified pipeline failure. Raw upstream messages
// are preserved in Raw so nothing is lost in classification.
type TradeError struct {
	Code    ErrorCode
	Message string
	Raw     string
	Cause   error
}

func (e *TradeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TradeError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match by code against a bare &TradeError{Code: X}.
func (e *TradeError) Is(target error) bool {
	var t *TradeError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError builds a classified error.
func NewError(code ErrorCode, format string, args ...interface{}) *TradeError {
	return &TradeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying failure.
func WrapError(code ErrorCode, cause error, format string, args ...interface{}) *TradeError {
	return &TradeError{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf extracts the taxonomy code, "" for unclassified errors.
func CodeOf(err error) ErrorCode {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsCode reports whether err carries the given classification.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// ErrUserRejected marks a wallet-signature refusal. It ends the current
// attempt but is not a system fault; orchestration resets to idle
// without surfacing an error state.
var ErrUserRejected = &TradeError{Code: CodeUserRejectedSignature, Message: "signature request rejected in wallet"}

// ErrBusy is returned when a second trade is started while one is in
// flight.
var ErrBusy = &TradeError{Code: CodeBusy, Message: "an order is already in flight"}

// OrderRejected preserves the exchange's raw rejection text.
func OrderRejected(raw string) *TradeError {
	return &TradeError{Code: CodeOrderRejected, Message: "order rejected by exchange", Raw: raw}
}
