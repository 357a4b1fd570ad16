// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txauthor chooses the unspent outputs that fund a payment. It does
// not build or sign transactions: a selection is the list of inputs together
// with the fee and change the payment would carry.
package txauthor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/bchwallet/unit"
	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

var (
	// ErrMissingChangeOutput is returned when the selection parameters do
	// not carry a change output template.
	ErrMissingChangeOutput = errors.New("change output template missing")

	// ErrInvalidTarget is returned for a negative target amount.
	ErrInvalidTarget = errors.New("target amount must not be negative")
)

// InsufficientFundsError is returned when no subset of the candidates can
// pay the target plus fees. It matches wtxmgr.ErrInsufficientFunds.
type InsufficientFundsError struct {
	// Target is the amount the recipients are paid.
	Target btcutil.Amount

	// Available is the total of every candidate plus any preselected
	// value.
	Available btcutil.Amount

	// Shortfall is how much more value would make spending every
	// candidate feasible.
	Shortfall btcutil.Amount
}

// Error implements the error interface.
func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: target %v, available %v, "+
		"short by %v", e.Target, e.Available, e.Shortfall)
}

// Unwrap returns wtxmgr.ErrInsufficientFunds so that errors.Is works on the
// whole insufficient funds class.
func (e *InsufficientFundsError) Unwrap() error {
	return wtxmgr.ErrInsufficientFunds
}

// SelectionParams describes the payment a selection must fund.
type SelectionParams struct {
	// Target is the total value paid to the recipients.
	Target btcutil.Amount

	// FeeRate is the fee rate the transaction pays.
	FeeRate unit.SatPerKByte

	// DustLimit is the smallest excess that is turned into a change
	// output. Smaller excess is left to the fee.
	DustLimit btcutil.Amount

	// Outputs are the recipient outputs. They are only used for size
	// estimation.
	Outputs []*wire.TxOut

	// ChangeOutput is a template of the change output. Its value is
	// ignored.
	ChangeOutput *wire.TxOut

	// Estimator computes the fee of a candidate transaction. The
	// SizeFeeEstimator is used when nil.
	Estimator FeeEstimator

	// PreselectedValue is the value of inputs chosen before selection
	// runs, such as token inputs.
	PreselectedValue btcutil.Amount

	// PreselectedInputs is the number of inputs that make up
	// PreselectedValue.
	PreselectedInputs int
}

// validate checks that the parameters can be evaluated.
func (p *SelectionParams) validate() error {
	if p.Target < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, p.Target)
	}

	if p.ChangeOutput == nil {
		return ErrMissingChangeOutput
	}

	return nil
}

// estimator returns the configured fee estimator or the default one.
func (p *SelectionParams) estimator() FeeEstimator {
	if p.Estimator == nil {
		return SizeFeeEstimator{}
	}

	return p.Estimator
}

// feeWithoutChange returns the fee of a transaction with the given number of
// selected inputs and only the recipient outputs.
func (p *SelectionParams) feeWithoutChange(inputCount int) btcutil.Amount {
	return p.estimator().EstimateFee(
		p.PreselectedInputs+inputCount, p.Outputs, p.FeeRate,
	)
}

// feeWithChange returns the fee of a transaction with the given number of
// selected inputs, the recipient outputs and the change output.
func (p *SelectionParams) feeWithChange(inputCount int) btcutil.Amount {
	outputs := make([]*wire.TxOut, 0, len(p.Outputs)+1)
	outputs = append(outputs, p.Outputs...)
	outputs = append(outputs, p.ChangeOutput)

	return p.estimator().EstimateFee(
		p.PreselectedInputs+inputCount, outputs, p.FeeRate,
	)
}

// Selection is the outcome of a successful coin selection.
type Selection struct {
	// Inputs are the selected candidates. Preselected inputs are not
	// included.
	Inputs []wtxmgr.Utxo

	// Total is the value of Inputs plus the preselected value.
	Total btcutil.Amount

	// Fee is the fee the transaction pays, including any excess below
	// the dust limit.
	Fee btcutil.Amount

	// Change is the value of the change output. It is zero when the
	// transaction has no change output.
	Change btcutil.Amount

	// excess is the value spent beyond the target and the size based
	// fee, as decided when the selection was evaluated.
	excess btcutil.Amount
}

// HasChange reports whether the selection needs a change output.
func (s *Selection) HasChange() bool {
	return s.Change > 0
}

// Excess returns the value the selection spends beyond the target and the
// estimated fee: the change, or the leftover below dust that is added to the
// fee. A change output that consumes the whole excess leaves zero. It is the
// quantity branch-and-bound minimizes.
func (s *Selection) Excess() btcutil.Amount {
	return s.excess
}

// ChangeTxOut returns the change output of the selection or nil when it has
// none.
func (s *Selection) ChangeTxOut(p *SelectionParams) *wire.TxOut {
	if !s.HasChange() {
		return nil
	}

	return wire.NewTxOut(int64(s.Change), p.ChangeOutput.PkScript)
}

// Evaluate decides whether inputCount selected inputs worth total in
// addition to the preselected inputs can pay for the payment.
//
// A transaction without change is tried first and is accepted when the
// excess is below the dust limit. Otherwise a change output is added and the
// result is accepted when the change is zero or not dust.
func Evaluate(p *SelectionParams, inputCount int,
	total btcutil.Amount) (Selection, bool) {

	total += p.PreselectedValue

	fee := p.feeWithoutChange(inputCount)
	excess := total - p.Target - fee
	if excess < 0 {
		return Selection{}, false
	}

	if excess == 0 || excess < p.DustLimit {
		return Selection{
			Total:  total,
			Fee:    fee + excess,
			excess: excess,
		}, true
	}

	fee = p.feeWithChange(inputCount)
	change := total - p.Target - fee
	switch {
	case change == 0:
		return Selection{Total: total, Fee: fee}, true

	case change >= p.DustLimit:
		return Selection{
			Total:  total,
			Fee:    fee,
			Change: change,
			excess: change,
		}, true

	default:
		return Selection{}, false
	}
}

// insufficientFunds builds the error for a candidate set that cannot fund
// the payment even when spent entirely.
func insufficientFunds(p *SelectionParams,
	candidates []wtxmgr.Utxo) *InsufficientFundsError {

	available := p.PreselectedValue + sumAmounts(candidates)

	required := p.Target + p.feeWithoutChange(len(candidates))
	if available >= required {
		// The excess is not dust but too small to pay for a change
		// output.
		required = p.Target + p.feeWithChange(len(candidates))
	}

	shortfall := required - available
	if shortfall < 0 {
		shortfall = 0
	}

	return &InsufficientFundsError{
		Target:    p.Target,
		Available: available,
		Shortfall: shortfall,
	}
}

// sumAmounts returns the total value of the utxos.
func sumAmounts(utxos []wtxmgr.Utxo) btcutil.Amount {
	var total btcutil.Amount
	for i := range utxos {
		total += utxos[i].Amount
	}

	return total
}

// sortByAmount returns a copy of the candidates ordered by descending amount.
// Equal amounts keep their input order.
func sortByAmount(candidates []wtxmgr.Utxo) []wtxmgr.Utxo {
	sorted := make([]wtxmgr.Utxo, len(candidates))
	copy(sorted, candidates)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Amount > sorted[j].Amount
	})

	return sorted
}
