// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"
	"time"

	"github.com/btcsuite/bchwallet/unit"
	"github.com/btcsuite/bchwallet/waddrmgr"
	"github.com/btcsuite/bchwallet/wallet/txauthor"
	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

const (
	// testFeeNoChange is the fee the stub estimator charges for a
	// transaction without change.
	testFeeNoChange = 192

	// testFeeWithChange is the fee the stub estimator charges for a
	// transaction with change.
	testFeeWithChange = 226

	// testDust is the dust limit of the stub dust threshold.
	testDust = 546
)

var (
	// chainParams are the chain parameters used throughout the wallet
	// tests.
	chainParams = chaincfg.RegressionNetParams

	// testTime is the starting time of the test clock.
	testTime = time.Unix(1700000000, 0)

	// stubEstimator charges a flat fee depending only on whether the
	// transaction has more than one output.
	stubEstimator = txauthor.FeeEstimatorFunc(func(_ int,
		outputs []*wire.TxOut, _ unit.SatPerKByte) btcutil.Amount {

		if len(outputs) > 1 {
			return testFeeWithChange
		}

		return testFeeNoChange
	})
)

// fixedDust is a dust threshold that ignores the output and the rate.
type fixedDust btcutil.Amount

// Threshold implements txauthor.DustThreshold.
func (d fixedDust) Threshold(*wire.TxOut, unit.SatPerKByte) btcutil.Amount {
	return btcutil.Amount(d)
}

// fakeDeriver derives distinct P2PKH addresses from the path without
// touching any key material.
type fakeDeriver struct{}

// DeriveAddress implements waddrmgr.AddressDeriver.
func (fakeDeriver) DeriveAddress(usage waddrmgr.Usage,
	index uint32) (btcutil.Address, error) {

	var buf [5]byte
	buf[0] = byte(usage)
	binary.BigEndian.PutUint32(buf[1:], index)

	hash := sha256.Sum256(buf[:])

	return btcutil.NewAddressPubKeyHash(hash[:20], &chainParams)
}

// newTestAccount creates an account with the fake deriver, the stub fee
// model and a test clock.
func newTestAccount(t testing.TB, gap uint32) (*Account,
	*clock.TestClock) {

	t.Helper()

	testClock := clock.NewTestClock(testTime)
	acct, err := NewAccount(Config{
		ChainParams:   &chainParams,
		Deriver:       fakeDeriver{},
		GapLimit:      gap,
		CacheValidity: time.Minute,
		FeeEstimator:  stubEstimator,
		DustThreshold: fixedDust(testDust),
		Clock:         testClock,
	})
	require.NoError(t, err)

	t.Cleanup(acct.Stop)

	return acct, testClock
}

// outPoint returns a distinct outpoint for the given number.
func outPoint(n uint32) wire.OutPoint {
	var hash chainhash.Hash
	binary.BigEndian.PutUint32(hash[:], n)

	return wire.OutPoint{Hash: hash, Index: n}
}

// utxoFor returns a plain output of the given amount paying to the entry.
func utxoFor(entry waddrmgr.Entry, n uint32,
	amount btcutil.Amount) wtxmgr.Utxo {

	return wtxmgr.Utxo{
		OutPoint: outPoint(n),
		Amount:   amount,
		PkScript: entry.PkScript,
	}
}

// fund adds one output per amount to the account, all paying to the first
// receiving entry, and returns them.
func fund(t testing.TB, acct *Account,
	amounts ...btcutil.Amount) []wtxmgr.Utxo {

	t.Helper()

	entry := acct.Entries(waddrmgr.UsageReceiving)[0]

	utxos := make([]wtxmgr.Utxo, 0, len(amounts))
	for i, amt := range amounts {
		utxos = append(utxos, utxoFor(entry, uint32(i+1), amt))
	}

	require.NoError(t, acct.AddUtxos(utxos...))

	return utxos
}

// recipient returns a recipient output of the given value.
func recipient(value btcutil.Amount) *wire.TxOut {
	addr, err := fakeDeriver{}.DeriveAddress(waddrmgr.Usage(7), 0)
	if err != nil {
		panic(err)
	}

	script := append([]byte{0x76, 0xa9, 0x14}, addr.ScriptAddress()...)
	script = append(script, 0x88, 0xac)

	return wire.NewTxOut(int64(value), script)
}

// amounts returns the amounts of the utxos.
func amounts(utxos []wtxmgr.Utxo) []btcutil.Amount {
	amts := make([]btcutil.Amount, 0, len(utxos))
	for _, u := range utxos {
		amts = append(amts, u.Amount)
	}

	return amts
}

// usedFlags returns the used flag of every entry of the usage.
func usedFlags(acct *Account, usage waddrmgr.Usage) []bool {
	entries := acct.Entries(usage)

	flags := make([]bool, 0, len(entries))
	for _, e := range entries {
		flags = append(flags, e.Used)
	}

	return flags
}
