// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"

	"github.com/btcsuite/bchwallet/wallet/cashtoken"
	"github.com/btcsuite/bchwallet/wallet/internal/db"
	"github.com/btcsuite/bchwallet/wtxmgr"
)

var (
	// ErrInsufficientFunds is the class of every capacity failure: an
	// output requested for a reservation is unknown or already reserved,
	// or no selection can pay the target.
	ErrInsufficientFunds = wtxmgr.ErrInsufficientFunds

	// ErrTxNotFound is returned when a history record is not known.
	ErrTxNotFound = wtxmgr.ErrTxNotFound

	// ErrTokenTransferHasNoRecipients is returned for a token transfer
	// without any recipient or burn.
	ErrTokenTransferHasNoRecipients = cashtoken.
		ErrTokenTransferHasNoRecipients

	// ErrTokenTransferRequiresSingleCategory is returned for a token
	// transfer that spans several categories.
	ErrTokenTransferRequiresSingleCategory = cashtoken.
		ErrTokenTransferRequiresSingleCategory

	// ErrTokenTransferInsufficientTokens is returned when the unreserved
	// outputs cannot cover the tokens of a transfer.
	ErrTokenTransferInsufficientTokens = cashtoken.
		ErrTokenTransferInsufficientTokens

	// ErrSnapshotNotFound is returned when a store holds no snapshot for
	// the account.
	ErrSnapshotNotFound = db.ErrSnapshotNotFound

	// ErrReservationNotActive is returned when a reservation that was
	// already released is transitioned again.
	ErrReservationNotActive = errors.New("reservation is not active")

	// ErrEmptyReservation is returned when a reservation is requested
	// without any output.
	ErrEmptyReservation = errors.New("reservation needs at least one " +
		"output")

	// ErrChangeInUse is returned when the change address of a new
	// reservation is already held by an active reservation.
	ErrChangeInUse = errors.New("change address held by an active " +
		"reservation")

	// ErrUntrackedScript is returned when an output pays to a script that
	// belongs to none of the account's entries.
	ErrUntrackedScript = errors.New("output pays to an untracked script")

	// ErrNoOutputs is returned when coin selection is requested without
	// any recipient.
	ErrNoOutputs = errors.New("no recipient outputs")

	// ErrMissingDeriver is returned when an account is created without
	// an address deriver.
	ErrMissingDeriver = errors.New("missing address deriver")
)
