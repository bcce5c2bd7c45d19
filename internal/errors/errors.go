package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess            Code = 0
	CodeInternal           Code = 1
	CodeUsage              Code = 2
	CodeUnavailable        Code = 12
	CodeSigner             Code = 17
	CodeInvalidAmount      Code = 20
	CodeInsufficientFunds  Code = 21
	CodeInsufficientEscrow Code = 22
	CodeUnsupportedPair    Code = 23
	CodeTxFailed           Code = 24
	CodeWrongNetwork       Code = 25
	CodeNotFound           Code = 26
)

// Error is a typed CLI error that carries a stable error code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if cliErr, ok := As(err); ok {
		return int(cliErr.Code)
	}
	return int(CodeInternal)
}

// TypeName returns the stable taxonomy name for a code, used in the error
// body of rendered envelopes.
func TypeName(code Code) string {
	switch code {
	case CodeUsage:
		return "usage"
	case CodeUnavailable:
		return "unavailable"
	case CodeSigner:
		return "signer"
	case CodeInvalidAmount:
		return "invalid_amount"
	case CodeInsufficientFunds:
		return "insufficient_balance"
	case CodeInsufficientEscrow:
		return "insufficient_escrow_balance"
	case CodeUnsupportedPair:
		return "unsupported_pair"
	case CodeTxFailed:
		return "transaction_failed"
	case CodeWrongNetwork:
		return "wrong_network"
	case CodeNotFound:
		return "not_found"
	default:
		return "internal"
	}
}
