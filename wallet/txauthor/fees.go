// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txauthor

import (
	"github.com/btcsuite/bchwallet/unit"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
)

// FeeEstimator computes the fee of a transaction from its shape. It must be
// deterministic and must not decrease when inputs or outputs are added.
type FeeEstimator interface {
	// EstimateFee returns the fee of a transaction spending inputCount
	// inputs into the given outputs at the given fee rate.
	EstimateFee(inputCount int, outputs []*wire.TxOut,
		feeRate unit.SatPerKByte) btcutil.Amount
}

// DustThreshold computes the smallest economical value of an output.
type DustThreshold interface {
	// Threshold returns the dust limit of an output shaped like template
	// at the given fee rate.
	Threshold(template *wire.TxOut,
		feeRate unit.SatPerKByte) btcutil.Amount
}

// SizeFeeEstimator estimates fees from the worst case serialized size of a
// transaction spending compressed P2PKH inputs.
type SizeFeeEstimator struct{}

// A compile-time assertion to ensure SizeFeeEstimator implements the
// FeeEstimator interface.
var _ FeeEstimator = (*SizeFeeEstimator)(nil)

// EstimateFee implements FeeEstimator.
func (SizeFeeEstimator) EstimateFee(inputCount int, outputs []*wire.TxOut,
	feeRate unit.SatPerKByte) btcutil.Amount {

	size := txsizes.EstimateSerializeSize(inputCount, outputs, false)

	return txrules.FeeForSerializeSize(btcutil.Amount(feeRate), size)
}

// RelayDustThreshold applies the relay dust rule: an output is dust if
// spending it costs more than a third of its value. The limit is the
// smallest value txrules.IsDustOutput accepts at the given fee rate.
type RelayDustThreshold struct{}

// A compile-time assertion to ensure RelayDustThreshold implements the
// DustThreshold interface.
var _ DustThreshold = (*RelayDustThreshold)(nil)

// Threshold implements DustThreshold.
func (RelayDustThreshold) Threshold(template *wire.TxOut,
	feeRate unit.SatPerKByte) btcutil.Amount {

	// The mempool threshold is the limit at 1000 sat/kB. Round up so
	// that the limit itself is never dust.
	base := mempool.GetDustThreshold(template)
	limit := (base*int64(feeRate) + 999) / 1000

	return btcutil.Amount(limit)
}

// FeeEstimatorFunc adapts a plain function to the FeeEstimator interface.
type FeeEstimatorFunc func(inputCount int, outputs []*wire.TxOut,
	feeRate unit.SatPerKByte) btcutil.Amount

// EstimateFee implements FeeEstimator.
func (f FeeEstimatorFunc) EstimateFee(inputCount int, outputs []*wire.TxOut,
	feeRate unit.SatPerKByte) btcutil.Amount {

	return f(inputCount, outputs, feeRate)
}
