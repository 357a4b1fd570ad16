// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txauthor

import (
	"bytes"

	"github.com/btcsuite/bchwallet/unit"
	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// testFeeNoChange and testFeeWithChange are the flat fees of the
	// stub estimator for a spend without and with change.
	testFeeNoChange   btcutil.Amount = 192
	testFeeWithChange btcutil.Amount = 226

	testDust btcutil.Amount = 546
)

// p2pkhScript returns a pay-to-pubkey-hash script paying to a hash filled
// with b.
func p2pkhScript(b byte) []byte {
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(bytes.Repeat([]byte{b}, 20)).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		panic(err)
	}

	return script
}

// testUtxos returns one utxo per amount with distinct outpoints.
func testUtxos(amounts ...btcutil.Amount) []wtxmgr.Utxo {
	utxos := make([]wtxmgr.Utxo, 0, len(amounts))
	for i, amt := range amounts {
		utxos = append(utxos, wtxmgr.Utxo{
			OutPoint: wire.OutPoint{
				Hash:  chainhash.Hash{byte(i + 1)},
				Index: uint32(i),
			},
			Amount:   amt,
			PkScript: p2pkhScript(0x01),
		})
	}

	return utxos
}

// stubEstimator charges a flat fee depending only on whether the
// transaction has a change output.
var stubEstimator = FeeEstimatorFunc(func(_ int, outputs []*wire.TxOut,
	_ unit.SatPerKByte) btcutil.Amount {

	if len(outputs) > 1 {
		return testFeeWithChange
	}

	return testFeeNoChange
})

// stubParams returns selection parameters paying target to one recipient
// with the stub estimator.
func stubParams(target btcutil.Amount) *SelectionParams {
	return &SelectionParams{
		Target:       target,
		FeeRate:      unit.DefaultRelayFeePerKByte,
		DustLimit:    testDust,
		Outputs:      []*wire.TxOut{wire.NewTxOut(int64(target), p2pkhScript(0x02))},
		ChangeOutput: wire.NewTxOut(0, p2pkhScript(0x03)),
		Estimator:    stubEstimator,
	}
}

// amounts returns the amounts of the utxos in order.
func amounts(utxos []wtxmgr.Utxo) []btcutil.Amount {
	amts := make([]btcutil.Amount, 0, len(utxos))
	for _, u := range utxos {
		amts = append(amts, u.Amount)
	}

	return amts
}
