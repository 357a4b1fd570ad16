// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wtxmgr

import "errors"

var (
	// ErrInsufficientFunds is the root of every capacity failure: a
	// requested output is not available for spending, or no candidate set
	// covers a payment.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnknownOutput is an error returned when an output not known to the
	// store is attempted to be locked.
	ErrUnknownOutput = errors.New("unknown output")

	// ErrOutputAlreadyLocked is an error returned when an output has
	// already been locked to a different ID.
	ErrOutputAlreadyLocked = errors.New("output already locked")

	// ErrOutputUnlockNotAllowed is an error returned when an output unlock
	// is attempted with a different ID than the one which locked it.
	ErrOutputUnlockNotAllowed = errors.New("output unlock not allowed")

	// ErrScriptMismatch is returned when a replacement set contains an
	// output that does not pay to the script being refreshed.
	ErrScriptMismatch = errors.New("output does not pay to script")

	// ErrTxNotFound is returned when a transaction hash is not recorded in
	// the log.
	ErrTxNotFound = errors.New("transaction not found")

	// ErrDuplicateTx is returned when attempting to insert a transaction
	// record that is already recorded.
	ErrDuplicateTx = errors.New("transaction already exists")

	// ErrNoScriptHashes is returned when a record without any script
	// fingerprint is inserted.
	ErrNoScriptHashes = errors.New("record has no script hashes")
)
