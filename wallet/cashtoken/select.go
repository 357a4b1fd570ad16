// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cashtoken

import (
	"fmt"

	"github.com/btcsuite/bchwallet/unit"
	"github.com/btcsuite/bchwallet/wallet/txauthor"
	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// SelectTokenInputs walks the candidates in their given order and takes
// every output of the required category that still helps meet a fungible or
// NFT requirement. Token identity rather than value drives eligibility, so
// the candidates are not sorted. It returns the selected inputs and the
// tokens they carry beyond the requirements.
func SelectTokenInputs(candidates []wtxmgr.Utxo,
	req *Requirements) ([]wtxmgr.Utxo, *CategoryBalance, error) {

	var (
		inputs    []wtxmgr.Utxo
		collected = newCategoryBalance()
	)

	satisfied := func() bool {
		if collected.Fungible < req.Fungible {
			return false
		}
		for g, n := range req.NFTs {
			if collected.NFTs[g] < n {
				return false
			}
		}

		return true
	}

	helps := func(t *wtxmgr.TokenData) bool {
		if t.Amount > 0 && collected.Fungible < req.Fungible {
			return true
		}

		g, ok := GroupOf(t)

		return ok && collected.NFTs[g] < req.NFTs[g]
	}

	for i := range candidates {
		if satisfied() {
			break
		}

		token := candidates[i].Token
		if token == nil || token.Category != req.Category {
			continue
		}

		if !helps(token) {
			continue
		}

		if err := collected.add(token); err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, candidates[i])
	}

	if !satisfied() {
		return nil, nil, fmt.Errorf("%w: category %v needs %d fungible "+
			"and %d NFTs, found %d fungible and %d NFTs",
			ErrTokenTransferInsufficientTokens, req.Category,
			req.Fungible, req.NFTCount(), collected.Fungible,
			collected.NFTCount())
	}

	surplus := newCategoryBalance()
	surplus.Fungible = collected.Fungible - req.Fungible
	for g, n := range collected.NFTs {
		if extra := n - req.NFTs[g]; extra > 0 {
			surplus.NFTs[g] = extra
		}
	}

	log.Debugf("Selected %d token inputs for category %v, surplus %d "+
		"fungible and %d NFTs", len(inputs), req.Category,
		surplus.Fungible, surplus.NFTCount())

	return inputs, surplus, nil
}

// DustFunc returns the dust limit of an output.
type DustFunc func(out *wire.TxOut) btcutil.Amount

// MakeTokenChangeOutputs returns the outputs that send the surplus tokens
// back to pkScript. Each surplus NFT gets its own dust-valued output and the
// fungible surplus rides on the first of them. A fungible surplus with no
// NFT gets an output of its own.
func MakeTokenChangeOutputs(category chainhash.Hash, surplus *CategoryBalance,
	pkScript []byte, dust DustFunc) ([]Recipient, error) {

	var tokens []*wtxmgr.TokenData
	fungible := surplus.Fungible
	for _, g := range surplus.Groups() {
		for n := uint64(0); n < surplus.NFTs[g]; n++ {
			tokens = append(tokens, g.Token(fungible))
			fungible = 0
		}
	}

	if fungible > 0 {
		tokens = append(tokens, &wtxmgr.TokenData{
			Category: category,
			Amount:   fungible,
		})
	}

	change := make([]Recipient, 0, len(tokens))
	for _, token := range tokens {
		r := Recipient{PkScript: pkScript, Token: token}

		out, err := r.TxOut()
		if err != nil {
			return nil, err
		}
		r.Value = dust(out)

		change = append(change, r)
	}

	return change, nil
}

// FundingRequest holds everything needed to fund a token transfer.
type FundingRequest struct {
	// Transfer is the transfer to fund.
	Transfer *Transfer

	// Candidates are the unreserved outputs that may be spent, token
	// bearing or not.
	Candidates []wtxmgr.Utxo

	// ChangeScript receives both the token change and the value change.
	ChangeScript []byte

	// FeeRate is the fee rate the transaction pays.
	FeeRate unit.SatPerKByte

	// Estimator computes fees. The size based estimator is used when
	// nil.
	Estimator txauthor.FeeEstimator

	// Dust computes dust limits. The relay dust rule is used when nil.
	Dust txauthor.DustThreshold

	// Strategy selects the value inputs. Greedy largest-first is used
	// when nil.
	Strategy txauthor.SelectionStrategy
}

// Funding is a funded token transfer.
type Funding struct {
	// Category is the category of the transfer.
	Category chainhash.Hash

	// TokenInputs are the inputs selected for their tokens.
	TokenInputs []wtxmgr.Utxo

	// ValueInputs are the plain inputs selected to pay the recipients'
	// value and the fee.
	ValueInputs []wtxmgr.Utxo

	// Outputs are the recipients followed by the token change outputs.
	Outputs []Recipient

	// TokenChange are the token change outputs, also part of Outputs.
	TokenChange []Recipient

	// Selection is the value selection, including the fee and value
	// change.
	Selection *txauthor.Selection
}

// Inputs returns the token inputs followed by the value inputs.
func (f *Funding) Inputs() []wtxmgr.Utxo {
	inputs := make([]wtxmgr.Utxo, 0,
		len(f.TokenInputs)+len(f.ValueInputs))
	inputs = append(inputs, f.TokenInputs...)

	return append(inputs, f.ValueInputs...)
}

// FundTransfer selects token inputs for the transfer, adds token change for
// the surplus, and then selects plain inputs to pay the output values and
// the fee. Token-bearing outputs are never used as value inputs.
func FundTransfer(req *FundingRequest) (*Funding, error) {
	tokenReq, err := NewRequirements(req.Transfer)
	if err != nil {
		return nil, err
	}

	tokenInputs, surplus, err := SelectTokenInputs(
		req.Candidates, tokenReq,
	)
	if err != nil {
		return nil, err
	}

	dustPolicy := req.Dust
	if dustPolicy == nil {
		dustPolicy = txauthor.RelayDustThreshold{}
	}
	dust := func(out *wire.TxOut) btcutil.Amount {
		return dustPolicy.Threshold(out, req.FeeRate)
	}

	tokenChange, err := MakeTokenChangeOutputs(
		tokenReq.Category, surplus, req.ChangeScript, dust,
	)
	if err != nil {
		return nil, err
	}

	outputs := make([]Recipient, 0,
		len(req.Transfer.Recipients)+len(tokenChange))
	for _, r := range req.Transfer.Recipients {
		r.Token = r.Token.Copy()
		outputs = append(outputs, r)
	}
	outputs = append(outputs, tokenChange...)

	var (
		txOuts []*wire.TxOut
		target btcutil.Amount
	)
	for i := range outputs {
		out, err := outputs[i].TxOut()
		if err != nil {
			return nil, err
		}

		if outputs[i].Token != nil && outputs[i].Value == 0 {
			outputs[i].Value = dust(out)
			out.Value = int64(outputs[i].Value)
		}

		txOuts = append(txOuts, out)
		target += outputs[i].Value
	}

	changeTemplate := wire.NewTxOut(0, req.ChangeScript)
	params := &txauthor.SelectionParams{
		Target:            target,
		FeeRate:           req.FeeRate,
		DustLimit:         dust(changeTemplate),
		Outputs:           txOuts,
		ChangeOutput:      changeTemplate,
		Estimator:         req.Estimator,
		PreselectedValue:  sumAmounts(tokenInputs),
		PreselectedInputs: len(tokenInputs),
	}

	strategy := req.Strategy
	if strategy == nil {
		strategy = txauthor.GreedyLargestFirst{}
	}

	plain := fn.Filter(req.Candidates, func(u wtxmgr.Utxo) bool {
		return !u.HasToken()
	})

	sel, err := strategy.Select(plain, params)
	if err != nil {
		return nil, fmt.Errorf("select value inputs: %w", err)
	}

	log.Infof("Funded token transfer of category %v with %d token and %d "+
		"value inputs, fee=%v", tokenReq.Category, len(tokenInputs),
		len(sel.Inputs), sel.Fee)

	return &Funding{
		Category:    tokenReq.Category,
		TokenInputs: tokenInputs,
		ValueInputs: sel.Inputs,
		Outputs:     outputs,
		TokenChange: tokenChange,
		Selection:   sel,
	}, nil
}

// sumAmounts returns the total value of the utxos.
func sumAmounts(utxos []wtxmgr.Utxo) btcutil.Amount {
	var total btcutil.Amount
	for i := range utxos {
		total += utxos[i].Amount
	}

	return total
}
