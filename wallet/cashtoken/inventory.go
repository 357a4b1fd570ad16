// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cashtoken

import (
	"bytes"
	"sort"

	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Group identifies interchangeable non-fungible tokens: same category,
// commitment and capability.
type Group struct {
	// Category is the token category id.
	Category chainhash.Hash

	// Commitment holds the raw commitment bytes. A string keeps the
	// group comparable.
	Commitment string

	// Capability is the capability of the tokens.
	Capability wtxmgr.NFTCapability
}

// GroupOf returns the NFT group of the token prefix. The second return is
// false if the prefix has no NFT.
func GroupOf(t *wtxmgr.TokenData) (Group, bool) {
	if t == nil || t.NFT == nil {
		return Group{}, false
	}

	return Group{
		Category:   t.Category,
		Commitment: string(t.NFT.Commitment),
		Capability: t.NFT.Capability,
	}, true
}

// Token returns the token prefix of a single NFT of the group carrying the
// given fungible amount.
func (g Group) Token(amount uint64) *wtxmgr.TokenData {
	return &wtxmgr.TokenData{
		Category: g.Category,
		Amount:   amount,
		NFT: &wtxmgr.NonFungibleToken{
			Capability: g.Capability,
			Commitment: []byte(g.Commitment),
		},
	}
}

// groupLess orders groups by category, commitment and capability.
func groupLess(a, b Group) bool {
	if c := bytes.Compare(a.Category[:], b.Category[:]); c != 0 {
		return c < 0
	}
	if a.Commitment != b.Commitment {
		return a.Commitment < b.Commitment
	}

	return a.Capability < b.Capability
}

// CategoryBalance is the token balance of one category.
type CategoryBalance struct {
	// Fungible is the fungible token amount.
	Fungible uint64

	// NFTs counts the non-fungible tokens per group.
	NFTs map[Group]uint64
}

// newCategoryBalance returns an empty balance.
func newCategoryBalance() *CategoryBalance {
	return &CategoryBalance{NFTs: make(map[Group]uint64)}
}

// add adds the tokens of the prefix to the balance.
func (b *CategoryBalance) add(t *wtxmgr.TokenData) error {
	if g, ok := GroupOf(t); ok {
		b.NFTs[g]++
	}

	sum, err := addAmounts(b.Fungible, t.Amount)
	if err != nil {
		return err
	}
	b.Fungible = sum

	return nil
}

// NFTCount returns the total number of non-fungible tokens.
func (b *CategoryBalance) NFTCount() uint64 {
	var n uint64
	for _, c := range b.NFTs {
		n += c
	}

	return n
}

// Groups returns the groups with a non-zero count in a stable order.
func (b *CategoryBalance) Groups() []Group {
	groups := make([]Group, 0, len(b.NFTs))
	for g, c := range b.NFTs {
		if c > 0 {
			groups = append(groups, g)
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		return groupLess(groups[i], groups[j])
	})

	return groups
}

// IsEmpty reports whether the balance holds no tokens.
func (b *CategoryBalance) IsEmpty() bool {
	return b.Fungible == 0 && b.NFTCount() == 0
}

// Inventory is the token balance of a set of outputs, per category. It is
// computed from the utxo set and never stored.
type Inventory map[chainhash.Hash]*CategoryBalance

// NewInventory computes the token inventory of the utxos. Fungible amounts
// that overflow are clamped to the maximum.
func NewInventory(utxos []wtxmgr.Utxo) Inventory {
	inv := make(Inventory)
	for i := range utxos {
		token := utxos[i].Token
		if token == nil {
			continue
		}

		bal, ok := inv[token.Category]
		if !ok {
			bal = newCategoryBalance()
			inv[token.Category] = bal
		}

		if err := bal.add(token); err != nil {
			log.Warnf("Clamping fungible balance of category %v: %v",
				token.Category, err)

			bal.Fungible = ^uint64(0)
		}
	}

	return inv
}

// Categories returns the categories of the inventory in byte order.
func (inv Inventory) Categories() []chainhash.Hash {
	cats := make([]chainhash.Hash, 0, len(inv))
	for c := range inv {
		cats = append(cats, c)
	}

	sort.Slice(cats, func(i, j int) bool {
		return bytes.Compare(cats[i][:], cats[j][:]) < 0
	})

	return cats
}

// Balance returns the balance of the category, empty if the inventory holds
// none of it.
func (inv Inventory) Balance(category chainhash.Hash) *CategoryBalance {
	if bal, ok := inv[category]; ok {
		return bal
	}

	return newCategoryBalance()
}
