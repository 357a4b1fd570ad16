// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddrmgr

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific ManagerError.
const (
	// ErrAddressNotFound indicates that the requested address is not
	// tracked by the inventory.
	ErrAddressNotFound ErrorCode = iota

	// ErrEntryNotFound indicates that no unused entry could be found for a
	// usage even after the gap was replenished. This is an invariant
	// violation.
	ErrEntryNotFound

	// ErrIndexOutOfBounds indicates that the next child index cannot be
	// represented as a non-hardened BIP0032 index, or that a restored
	// path does not fit the sequence.
	ErrIndexOutOfBounds

	// ErrEntryDuplicated indicates that a freshly derived address already
	// belongs to a different entry. It signals a broken deriver.
	ErrEntryDuplicated

	// ErrAddressDuplicated indicates that the same address or derivation
	// path was offered twice within a single batch.
	ErrAddressDuplicated

	// ErrCacheInvalid indicates that a cached balance is missing or has
	// expired.
	ErrCacheInvalid

	// ErrCacheUpdateFailed indicates that a cache write referenced an
	// address which is not part of the inventory.
	ErrCacheUpdateFailed

	// ErrDerivation indicates that the key derivation collaborator failed.
	ErrDerivation

	// ErrWatchOnly indicates that a private key was requested from a
	// deriver that only holds public keys.
	ErrWatchOnly

	// ErrUnknownUsage indicates that a usage class other than receiving or
	// change was requested.
	ErrUnknownUsage

	// ErrInvalidConfig indicates that the inventory configuration is not
	// usable.
	ErrInvalidConfig
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrAddressNotFound:   "ErrAddressNotFound",
	ErrEntryNotFound:     "ErrEntryNotFound",
	ErrIndexOutOfBounds:  "ErrIndexOutOfBounds",
	ErrEntryDuplicated:   "ErrEntryDuplicated",
	ErrAddressDuplicated: "ErrAddressDuplicated",
	ErrCacheInvalid:      "ErrCacheInvalid",
	ErrCacheUpdateFailed: "ErrCacheUpdateFailed",
	ErrDerivation:        "ErrDerivation",
	ErrWatchOnly:         "ErrWatchOnly",
	ErrUnknownUsage:      "ErrUnknownUsage",
	ErrInvalidConfig:     "ErrInvalidConfig",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// ManagerError provides a single type for errors that can happen during
// address inventory operation. It is used to indicate several types of
// failures including lookup failures, derivation collisions and cache
// misses.
//
// The caller can use type assertions or IsError to determine the specific
// error code.
type ManagerError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e ManagerError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e ManagerError) Unwrap() error {
	return e.Err
}

// managerError creates a ManagerError given a set of arguments.
func managerError(c ErrorCode, desc string, err error) ManagerError {
	return ManagerError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a ManagerError with a matching error
// code. Wrapped errors are inspected as well, so a cache update failure that
// wraps an unknown address matches both codes.
func IsError(err error, code ErrorCode) bool {
	for err != nil {
		var merr ManagerError
		if !errors.As(err, &merr) {
			return false
		}

		if merr.ErrorCode == code {
			return true
		}

		err = merr.Err
	}

	return false
}
