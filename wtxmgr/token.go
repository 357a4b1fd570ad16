// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wtxmgr

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// NFTCapability is the capability of a non-fungible token.
type NFTCapability uint8

const (
	// NFTCapabilityNone marks an immutable token.
	NFTCapabilityNone NFTCapability = iota

	// NFTCapabilityMutable marks a token whose commitment may be changed
	// once when spent.
	NFTCapabilityMutable

	// NFTCapabilityMinting marks a token that may create new tokens of its
	// category.
	NFTCapabilityMinting
)

// String returns the human-readable name of the capability.
func (c NFTCapability) String() string {
	switch c {
	case NFTCapabilityNone:
		return "none"
	case NFTCapabilityMutable:
		return "mutable"
	case NFTCapabilityMinting:
		return "minting"
	default:
		return fmt.Sprintf("unknown capability (%d)", uint8(c))
	}
}

// NonFungibleToken is the NFT part of a token prefix.
type NonFungibleToken struct {
	Capability NFTCapability
	Commitment []byte
}

// TokenData is the token prefix carried by a token-bearing output. An output
// may carry a fungible amount, an NFT, or both, all of one category.
type TokenData struct {
	// Category is the token category id.
	Category chainhash.Hash

	// Amount is the fungible token amount, zero if none.
	Amount uint64

	// NFT is the non-fungible token, nil if none.
	NFT *NonFungibleToken
}

// Equal returns true if both token prefixes are identical.
func (t *TokenData) Equal(o *TokenData) bool {
	switch {
	case t == nil || o == nil:
		return t == o

	case t.Category != o.Category || t.Amount != o.Amount:
		return false

	case t.NFT == nil || o.NFT == nil:
		return t.NFT == o.NFT

	default:
		return t.NFT.Capability == o.NFT.Capability &&
			bytes.Equal(t.NFT.Commitment, o.NFT.Commitment)
	}
}

// Copy returns a deep copy of the token prefix.
func (t *TokenData) Copy() *TokenData {
	if t == nil {
		return nil
	}

	c := &TokenData{Category: t.Category, Amount: t.Amount}
	if t.NFT != nil {
		c.NFT = &NonFungibleToken{
			Capability: t.NFT.Capability,
			Commitment: append([]byte(nil), t.NFT.Commitment...),
		}
	}

	return c
}

// String returns a compact description of the token prefix.
func (t *TokenData) String() string {
	if t == nil {
		return "<none>"
	}

	if t.NFT == nil {
		return fmt.Sprintf("%v:%d", t.Category, t.Amount)
	}

	return fmt.Sprintf("%v:%d:nft(%v,%x)", t.Category, t.Amount,
		t.NFT.Capability, t.NFT.Commitment)
}
