// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cashtoken

import (
	"testing"

	"github.com/btcsuite/bchwallet/unit"
	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// drawCandidates draws a mix of plain outputs and token outputs of three
// categories.
func drawCandidates(t *rapid.T) []wtxmgr.Utxo {
	categories := []chainhash.Hash{catA, catB, {0xcc}}

	var b utxoBuilder
	n := rapid.IntRange(0, 20).Draw(t, "n")
	utxos := make([]wtxmgr.Utxo, 0, n)
	for i := 0; i < n; i++ {
		value := btcutil.Amount(
			rapid.Int64Range(1_000, 100_000).Draw(t, "value"),
		)
		if rapid.Bool().Draw(t, "plain") {
			utxos = append(utxos, b.plain(value))
			continue
		}

		token := &wtxmgr.TokenData{
			Category: categories[rapid.IntRange(0, 2).Draw(t, "cat")],
			Amount:   rapid.Uint64Range(0, 100).Draw(t, "amount"),
		}
		if token.Amount == 0 || rapid.Bool().Draw(t, "nft") {
			token.NFT = &wtxmgr.NonFungibleToken{
				Capability: wtxmgr.NFTCapability(
					rapid.IntRange(0, 2).Draw(t, "capability"),
				),
				Commitment: []byte{rapid.Byte().Draw(t, "commitment")},
			}
		}

		utxos = append(utxos, b.utxo(value, token))
	}

	return utxos
}

// TestTokenIsolationProperty checks that funding a transfer of one category
// never spends tokens of another category and never spends token outputs
// as value inputs.
func TestTokenIsolationProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		candidates := drawCandidates(t)

		amount := rapid.Uint64Range(1, 300).Draw(t, "transfer")
		transfer := &Transfer{Recipients: []Recipient{{
			PkScript: scriptRecipient,
			Token:    &wtxmgr.TokenData{Category: catA, Amount: amount},
		}}}

		funding, err := FundTransfer(&FundingRequest{
			Transfer:     transfer,
			Candidates:   candidates,
			ChangeScript: scriptChange,
			FeeRate:      unit.DefaultRelayFeePerKByte,
		})
		if err != nil {
			return
		}

		var fungible uint64
		for _, in := range funding.TokenInputs {
			require.NotNil(t, in.Token)
			require.Equal(t, catA, in.Token.Category)
			fungible += in.Token.Amount
		}
		require.GreaterOrEqual(t, fungible, amount)

		for _, in := range funding.ValueInputs {
			require.False(t, in.HasToken())
		}

		// Tokens in equal tokens out.
		var out uint64
		for _, o := range funding.Outputs {
			if o.Token != nil {
				require.Equal(t, catA, o.Token.Category)
				out += o.Token.Amount
			}
		}
		require.Equal(t, fungible, out)

		inNFTs := NewInventory(funding.TokenInputs).Balance(catA).NFTCount()
		var outNFTs uint64
		for _, o := range funding.Outputs {
			if o.Token != nil && o.Token.NFT != nil {
				outNFTs++
			}
		}
		require.Equal(t, inNFTs, outNFTs)
	})
}
