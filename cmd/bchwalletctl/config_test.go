// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/bchwallet/waddrmgr"
	"github.com/btcsuite/bchwallet/wallet"
	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

// testParams are the chain parameters of the command tests.
var testParams = &chaincfg.RegressionNetParams

// TestLoadConfig checks option parsing and validation.
func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, cfg *config)
	}{
		{
			name:    "missing xpub",
			args:    nil,
			wantErr: true,
		},
		{
			name: "defaults",
			args: []string{"--xpub=xpubtest"},
			check: func(t *testing.T, cfg *config) {
				require.Equal(t, &chaincfg.MainNetParams,
					cfg.params)
				require.Equal(t, uint32(waddrmgr.DefaultGapLimit),
					cfg.GapLimit)
				require.Equal(t, wallet.BackendKvdb,
					cfg.DBBackend)
				require.EqualValues(t, 1000, cfg.feeRate())
			},
		},
		{
			name: "regtest sqlite",
			args: []string{
				"--xpub=xpubtest", "--network=regtest",
				"--dbbackend=sqlite", "--strategy=bnb",
				"--gaplimit=5",
			},
			check: func(t *testing.T, cfg *config) {
				require.Equal(t, testParams, cfg.params)
				require.Equal(t, uint32(5), cfg.GapLimit)

				strategy, err := cfg.strategy()
				require.NoError(t, err)
				require.Equal(t, "bnb", strategy.Name())
			},
		},
		{
			name:    "unknown network",
			args:    []string{"--xpub=xpubtest", "--network=foo"},
			wantErr: true,
		},
		{
			name:    "zero gap limit",
			args:    []string{"--xpub=xpubtest", "--gaplimit=0"},
			wantErr: true,
		},
		{
			name:    "fee rate too high",
			args:    []string{"--xpub=xpubtest", "--feerate=5000000"},
			wantErr: true,
		},
		{
			name:    "negative selection",
			args:    []string{"--xpub=xpubtest", "--select=-1"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := loadConfig(tc.args)
			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}

// TestImportUtxos checks that outputs listed in a JSON file are added to
// the account with their tokens.
func TestImportUtxos(t *testing.T) {
	t.Parallel()

	deriver, err := waddrmgr.NewHDDeriverFromSeed(
		make([]byte, 32), 0, testParams,
	)
	require.NoError(t, err)

	acctCfg := wallet.DefaultConfig(deriver)
	acctCfg.ChainParams = testParams
	acctCfg.GapLimit = 2

	acct, err := wallet.NewAccount(acctCfg)
	require.NoError(t, err)
	t.Cleanup(acct.Stop)

	addr := acct.Entries(waddrmgr.UsageReceiving)[0].Address

	listing := `[
		{"txid": "` + hashHex(1) + `", "vout": 0, "amount": 5000,
		 "address": "` + addr.EncodeAddress() + `"},
		{"txid": "` + hashHex(2) + `", "vout": 1, "amount": 800,
		 "address": "` + addr.EncodeAddress() + `",
		 "token": {"category": "` + hashHex(3) + `", "amount": 10,
		           "capability": "mutable", "commitment": "beef"}}
	]`

	path := filepath.Join(t.TempDir(), "utxos.json")
	require.NoError(t, os.WriteFile(path, []byte(listing), 0o600))

	n, err := importUtxos(acct, testParams, path)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	bal := acct.Balance()
	require.Equal(t, btcutil.Amount(5800), bal.Available)

	inv := acct.TokenInventory()
	require.Len(t, inv.Categories(), 1)
	require.Equal(t, uint64(10), inv.Balance(inv.Categories()[0]).Fungible)

	for _, u := range acct.ListUnspent() {
		if !u.HasToken() {
			continue
		}

		require.Equal(t, wtxmgr.NFTCapabilityMutable,
			u.Token.NFT.Capability)
		require.Equal(t, []byte{0xbe, 0xef}, u.Token.NFT.Commitment)
	}

	// An address the account does not own is rejected.
	other, err := waddrmgr.NewHDDeriverFromSeed(
		make([]byte, 32), 1, testParams,
	)
	require.NoError(t, err)
	foreign, err := other.DeriveAddress(waddrmgr.UsageReceiving, 0)
	require.NoError(t, err)

	bad := `[{"txid": "` + hashHex(4) + `", "vout": 0, "amount": 1,
		"address": "` + foreign.EncodeAddress() + `"}]`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o600))

	_, err = importUtxos(acct, testParams, path)
	require.True(t, waddrmgr.IsError(err, waddrmgr.ErrAddressNotFound))
}

// TestParseCapability checks the NFT capability names.
func TestParseCapability(t *testing.T) {
	t.Parallel()

	for _, c := range []wtxmgr.NFTCapability{
		wtxmgr.NFTCapabilityNone,
		wtxmgr.NFTCapabilityMutable,
		wtxmgr.NFTCapabilityMinting,
	} {
		got, err := parseCapability(c.String())
		require.NoError(t, err)
		require.Equal(t, c, got)
	}

	_, err := parseCapability("burnt")
	require.Error(t, err)
}

// hashHex returns a distinct hex encoded hash.
func hashHex(n byte) string {
	var hash chainhash.Hash
	hash[0] = n

	return hash.String()
}
