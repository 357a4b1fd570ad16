// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cashtoken

import "errors"

var (
	// ErrTokenTransferHasNoRecipients is returned when a transfer has
	// neither token recipients nor burns.
	ErrTokenTransferHasNoRecipients = errors.New("token transfer has no " +
		"recipients")

	// ErrTokenTransferRequiresSingleCategory is returned when the token
	// recipients and burns of a transfer span more than one category.
	ErrTokenTransferRequiresSingleCategory = errors.New("token transfer " +
		"requires a single category")

	// ErrTokenTransferInsufficientTokens is returned when the candidates
	// do not hold enough tokens of the transfer category.
	ErrTokenTransferInsufficientTokens = errors.New("insufficient tokens " +
		"for transfer")

	// ErrTokenAmountOverflow is returned when fungible amounts do not fit
	// in 64 bits.
	ErrTokenAmountOverflow = errors.New("fungible token amount overflow")
)
