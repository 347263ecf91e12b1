// Copyright (c) 2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

const (
	// ErrInvalidInput indicates a malformed or inconsistent argument such
	// as an address for another network, a dust amount or a redeem script
	// that does not hash to the source address.
	ErrInvalidInput ErrorCode = iota

	// ErrInvalidState indicates a signing state that cannot be used, for
	// example a hand-off file that is missing, unreadable or malformed.
	ErrInvalidState

	// ErrStaleState indicates a signing state that has already been
	// resumed once on this machine.
	ErrStaleState

	// ErrAlreadyComplete indicates an attempt to sign a transaction that
	// already carries every required signature.
	ErrAlreadyComplete

	// ErrNodeService indicates a failed call to the node.
	ErrNodeService

	// ErrInsufficientFunds indicates that the source address holds less
	// than the requested amount.
	ErrInsufficientFunds

	// ErrInsufficientSelectedValue indicates that the selected inputs and
	// their interest do not cover the amount and the fee.
	ErrInsufficientSelectedValue

	// lastErr is used for testing, making it possible to iterate over
	// the error codes in order to check that they all have proper
	// translations in errorCodeStrings.
	lastErr
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidInput:              "ErrInvalidInput",
	ErrInvalidState:              "ErrInvalidState",
	ErrStaleState:                "ErrStaleState",
	ErrAlreadyComplete:           "ErrAlreadyComplete",
	ErrNodeService:               "ErrNodeService",
	ErrInsufficientFunds:         "ErrInsufficientFunds",
	ErrInsufficientSelectedValue: "ErrInsufficientSelectedValue",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// ErrorKind groups error codes by where the problem lies.
type ErrorKind int

const (
	// KindUnknown is the kind of codes outside the known range.
	KindUnknown ErrorKind = iota

	// KindValidation is a problem with the caller's arguments.
	KindValidation

	// KindState is a problem with a carried signing state.
	KindState

	// KindExternal is a problem reported by, or with, the node.
	KindExternal

	// KindArithmetic is a value that does not add up.
	KindArithmetic
)

var errorKindStrings = map[ErrorKind]string{
	KindUnknown:    "unknown",
	KindValidation: "validation",
	KindState:      "state",
	KindExternal:   "external",
	KindArithmetic: "arithmetic",
}

// String returns the kind as a human-readable name.
func (k ErrorKind) String() string {
	if s, ok := errorKindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorKind (%d)", int(k))
}

// Kind returns the group the code belongs to.
func (e ErrorCode) Kind() ErrorKind {
	switch e {
	case ErrInvalidInput:
		return KindValidation

	case ErrInvalidState, ErrStaleState, ErrAlreadyComplete:
		return KindState

	case ErrNodeService, ErrInsufficientFunds:
		return KindExternal

	case ErrInsufficientSelectedValue:
		return KindArithmetic

	default:
		return KindUnknown
	}
}

// Error is a typed error for all errors arising while building and signing
// a multi-signature transaction.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error.
func NewError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether err is, or wraps, an Error with the given code.
func IsError(err error, code ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.ErrorCode == code
}

// CodeOf returns the code of the first Error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var e Error
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.ErrorCode, true
}
