// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cashtoken

import (
	"bytes"

	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

var (
	catA = chainhash.Hash{0xaa}
	catB = chainhash.Hash{0xbb}

	scriptRecipient = p2pkh(0x01)
	scriptChange    = p2pkh(0x02)
	scriptOwn       = p2pkh(0x03)
)

// p2pkh returns a pay-to-pubkey-hash script to a hash filled with b.
func p2pkh(b byte) []byte {
	script := []byte{0x76, 0xa9, 0x14}
	script = append(script, bytes.Repeat([]byte{b}, 20)...)

	return append(script, 0x88, 0xac)
}

// utxoBuilder hands out utxos with increasing outpoints.
type utxoBuilder struct {
	next uint32
}

func (b *utxoBuilder) utxo(value btcutil.Amount,
	token *wtxmgr.TokenData) wtxmgr.Utxo {

	b.next++

	return wtxmgr.Utxo{
		OutPoint: wire.OutPoint{Hash: chainhash.Hash{0x01}, Index: b.next},
		Amount:   value,
		PkScript: scriptOwn,
		Token:    token,
	}
}

func (b *utxoBuilder) plain(value btcutil.Amount) wtxmgr.Utxo {
	return b.utxo(value, nil)
}

func (b *utxoBuilder) fungible(cat chainhash.Hash, amount uint64) wtxmgr.Utxo {
	return b.utxo(800, &wtxmgr.TokenData{Category: cat, Amount: amount})
}

func (b *utxoBuilder) nft(cat chainhash.Hash, commitment string,
	capability wtxmgr.NFTCapability) wtxmgr.Utxo {

	return b.utxo(800, nftToken(cat, commitment, capability))
}

// nftToken returns an NFT token prefix without fungible amount.
func nftToken(cat chainhash.Hash, commitment string,
	capability wtxmgr.NFTCapability) *wtxmgr.TokenData {

	return &wtxmgr.TokenData{
		Category: cat,
		NFT: &wtxmgr.NonFungibleToken{
			Capability: capability,
			Commitment: []byte(commitment),
		},
	}
}

// fixedDust returns a dust function with a constant limit.
func fixedDust(limit btcutil.Amount) DustFunc {
	return func(*wire.TxOut) btcutil.Amount {
		return limit
	}
}
