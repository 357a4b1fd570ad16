// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cashtoken

import (
	"fmt"
	"math/bits"

	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Transfer describes a payment that moves or burns tokens of one category.
// Recipients without a token prefix are plain payments funded alongside.
type Transfer struct {
	// Recipients are the outputs of the transfer.
	Recipients []Recipient

	// Burns are tokens consumed without an output.
	Burns []wtxmgr.TokenData
}

// tokens returns every token prefix the transfer spends, recipients first.
func (t *Transfer) tokens() []*wtxmgr.TokenData {
	tokens := make([]*wtxmgr.TokenData, 0, len(t.Recipients)+len(t.Burns))
	for i := range t.Recipients {
		if t.Recipients[i].Token != nil {
			tokens = append(tokens, t.Recipients[i].Token)
		}
	}
	for i := range t.Burns {
		tokens = append(tokens, &t.Burns[i])
	}

	return tokens
}

// ResolveCategory returns the single category shared by every token
// recipient and burn of the transfer.
func ResolveCategory(t *Transfer) (chainhash.Hash, error) {
	tokens := t.tokens()
	if len(tokens) == 0 {
		return chainhash.Hash{}, ErrTokenTransferHasNoRecipients
	}

	category := tokens[0].Category
	for _, token := range tokens[1:] {
		if token.Category != category {
			return chainhash.Hash{}, fmt.Errorf("%w: %v and %v",
				ErrTokenTransferRequiresSingleCategory, category,
				token.Category)
		}
	}

	return category, nil
}

// Requirements is the token amount a transfer consumes from its inputs.
type Requirements struct {
	// Category is the category of the transfer.
	Category chainhash.Hash

	*CategoryBalance
}

// NewRequirements sums the fungible amounts and counts the NFTs per group
// over the recipients and burns of the transfer.
func NewRequirements(t *Transfer) (*Requirements, error) {
	category, err := ResolveCategory(t)
	if err != nil {
		return nil, err
	}

	req := &Requirements{
		Category:        category,
		CategoryBalance: newCategoryBalance(),
	}
	for _, token := range t.tokens() {
		if err := req.add(token); err != nil {
			return nil, err
		}
	}

	return req, nil
}

// addAmounts adds two fungible amounts and fails on overflow.
func addAmounts(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrTokenAmountOverflow, a, b)
	}

	return sum, nil
}
