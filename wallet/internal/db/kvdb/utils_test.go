// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package kvdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/bchwallet/waddrmgr"
	"github.com/btcsuite/bchwallet/wallet/internal/db"
	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

const defaultDBTimeout = 10 * time.Second

// newTestDB creates a temporary bdb walletdb for kvdb store tests.
//
// It returns the opened database and a cleanup function that must be called
// after the test completes.
func newTestDB(t *testing.T) (walletdb.DB, func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "wallet.db")

	dbConn, err := walletdb.Create(
		"bdb", dbPath, true, defaultDBTimeout, false,
	)
	require.NoError(t, err)

	cleanup := func() {
		_ = dbConn.Close()
	}

	return dbConn, cleanup
}

// newTestStore creates a snapshot store on a temporary database.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbConn, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	store, err := NewStore(dbConn)
	require.NoError(t, err)

	return store
}

// testSnapshot returns a snapshot that exercises every optional field.
func testSnapshot() *db.Snapshot {
	updated := time.Unix(1700000000, 12345)
	hashA := chainhash.Hash{0x01}
	hashB := chainhash.Hash{0x02}
	category := chainhash.Hash{0xca, 0xfe}

	return &db.Snapshot{
		Entries: []waddrmgr.EntryState{
			{
				Path: waddrmgr.DerivationPath{
					Usage: waddrmgr.UsageReceiving,
				},
				Used: true,
				Cache: waddrmgr.BalanceCache{
					Balance:     fn.Some(btcutil.Amount(5000)),
					LastUpdated: fn.Some(updated),
					ValidFor:    time.Minute,
				},
			},
			{
				Path: waddrmgr.DerivationPath{
					Usage: waddrmgr.UsageReceiving,
					Index: 1,
				},
			},
			{
				Path: waddrmgr.DerivationPath{
					Usage: waddrmgr.UsageChange,
					Index: 0,
				},
				Used: true,
			},
		},
		Utxos: []wtxmgr.Utxo{
			{
				OutPoint: wire.OutPoint{Hash: hashA, Index: 0},
				Amount:   5000,
				PkScript: []byte{0x76, 0xa9},
			},
			{
				OutPoint: wire.OutPoint{Hash: hashA, Index: 1},
				Amount:   800,
				PkScript: []byte{0x76, 0xa9},
				Token: &wtxmgr.TokenData{
					Category: category,
					Amount:   1_000_000,
				},
			},
			{
				OutPoint: wire.OutPoint{Hash: hashB, Index: 3},
				Amount:   800,
				PkScript: []byte{0x76, 0xa9},
				Token: &wtxmgr.TokenData{
					Category: category,
					NFT: &wtxmgr.NonFungibleToken{
						Capability: wtxmgr.NFTCapabilityMinting,
					},
				},
			},
			{
				OutPoint: wire.OutPoint{Hash: hashB, Index: 4},
				Amount:   800,
				PkScript: []byte{0x76, 0xa9},
				Token: &wtxmgr.TokenData{
					Category: category,
					Amount:   7,
					NFT: &wtxmgr.NonFungibleToken{
						Capability: wtxmgr.NFTCapabilityMutable,
						Commitment: []byte("ticket"),
					},
				},
			},
		},
		History: []wtxmgr.TxRecord{
			{
				Hash:         hashA,
				Height:       100,
				Fee:          fn.Some(btcutil.Amount(226)),
				ScriptHashes: fn.NewSet("aa", "bb"),
				Verification: wtxmgr.VerificationVerified,
				MerkleProof:  []byte{0x01, 0x02, 0x03},
			},
			{
				Hash:         hashB,
				Height:       -1,
				ScriptHashes: fn.NewSet("aa"),
			},
		},
	}
}
