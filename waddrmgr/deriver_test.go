// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddrmgr

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

// testSeed is a fixed seed so derived addresses are stable across runs.
var testSeed = bytes.Repeat([]byte{0x2a}, 32)

// TestHDDeriver checks that the deriver is deterministic, separates the
// branches and matches its own private keys.
func TestHDDeriver(t *testing.T) {
	t.Parallel()

	d, err := NewHDDeriverFromSeed(testSeed, 0, &chainParams)
	require.NoError(t, err)

	again, err := NewHDDeriverFromSeed(testSeed, 0, &chainParams)
	require.NoError(t, err)

	seen := make(map[string]DerivationPath)
	for _, usage := range Usages {
		for index := uint32(0); index < 5; index++ {
			addr, err := d.DeriveAddress(usage, index)
			require.NoError(t, err)

			addr2, err := again.DeriveAddress(usage, index)
			require.NoError(t, err)
			require.Equal(t, addr.EncodeAddress(),
				addr2.EncodeAddress())

			path := DerivationPath{Usage: usage, Index: index}
			_, dup := seen[addr.EncodeAddress()]
			require.False(t, dup, "collision at %v", path)
			seen[addr.EncodeAddress()] = path

			privKey, err := d.DerivePrivKey(usage, index)
			require.NoError(t, err)

			pkHash := btcutil.Hash160(
				privKey.PubKey().SerializeCompressed(),
			)
			require.Equal(t, pkHash, addr.ScriptAddress())
		}
	}
}

// TestHDDeriverAccounts checks that different accounts derive different
// addresses.
func TestHDDeriverAccounts(t *testing.T) {
	t.Parallel()

	d0, err := NewHDDeriverFromSeed(testSeed, 0, &chainParams)
	require.NoError(t, err)

	d1, err := NewHDDeriverFromSeed(testSeed, 1, &chainParams)
	require.NoError(t, err)

	a0, err := d0.DeriveAddress(UsageReceiving, 0)
	require.NoError(t, err)

	a1, err := d1.DeriveAddress(UsageReceiving, 0)
	require.NoError(t, err)

	require.NotEqual(t, a0.EncodeAddress(), a1.EncodeAddress())
}

// TestHDDeriverWatchOnly checks that a deriver built from a neutered
// account key produces the same addresses but refuses to hand out private
// keys.
func TestHDDeriverWatchOnly(t *testing.T) {
	t.Parallel()

	full, err := NewHDDeriverFromSeed(testSeed, 0, &chainParams)
	require.NoError(t, err)

	master, err := hdkeychain.NewMaster(testSeed, &chainParams)
	require.NoError(t, err)

	accountKey := master
	for _, child := range []uint32{
		purposeBIP0044 + hdkeychain.HardenedKeyStart,
		CoinTypeTestnet + hdkeychain.HardenedKeyStart,
		hdkeychain.HardenedKeyStart,
	} {
		accountKey, err = accountKey.Derive(child)
		require.NoError(t, err)
	}

	accountPub, err := accountKey.Neuter()
	require.NoError(t, err)

	watch, err := NewHDDeriverFromString(accountPub.String(), &chainParams)
	require.NoError(t, err)

	for _, usage := range Usages {
		want, err := full.DeriveAddress(usage, 7)
		require.NoError(t, err)

		got, err := watch.DeriveAddress(usage, 7)
		require.NoError(t, err)
		require.Equal(t, want.EncodeAddress(), got.EncodeAddress())
	}

	_, err = watch.DerivePrivKey(UsageReceiving, 0)
	require.True(t, IsError(err, ErrWatchOnly))
}

// TestHDDeriverErrors checks input validation of the deriver.
func TestHDDeriverErrors(t *testing.T) {
	t.Parallel()

	d, err := NewHDDeriverFromSeed(testSeed, 0, &chainParams)
	require.NoError(t, err)

	_, err = d.DeriveAddress(UsageReceiving, MaxIndex+1)
	require.True(t, IsError(err, ErrIndexOutOfBounds))

	_, err = d.DeriveAddress(Usage(3), 0)
	require.True(t, IsError(err, ErrUnknownUsage))

	_, err = NewHDDeriverFromString("not a key", &chainParams)
	require.True(t, IsError(err, ErrInvalidConfig))

	// A regtest key must not be accepted for mainnet.
	key := d.branches[UsageReceiving].String()
	_, err = NewHDDeriverFromString(key, &chaincfg.MainNetParams)
	require.True(t, IsError(err, ErrInvalidConfig))
}

// TestCoinTypeForNet checks the SLIP-0044 coin type selection.
func TestCoinTypeForNet(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint32(CoinTypeBitcoinCash),
		CoinTypeForNet(&chaincfg.MainNetParams))
	require.Equal(t, uint32(CoinTypeTestnet),
		CoinTypeForNet(&chaincfg.TestNet3Params))
}
