// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wtxmgr

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

var (
	// testTime is the starting time of the test clocks.
	testTime = time.Unix(1700000000, 0)

	// scriptA and scriptB are two distinct locking scripts.
	scriptA = []byte{0x76, 0xa9, 0x14, 0xaa}
	scriptB = []byte{0x76, 0xa9, 0x14, 0xbb}

	// lockA and lockB are two distinct lease ids.
	lockA = LockID{0xa}
	lockB = LockID{0xb}
)

// testHash returns a hash whose first byte is b.
func testHash(b byte) chainhash.Hash {
	return chainhash.Hash{b}
}

// testOutPoint returns the outpoint at index i of the tx testHash(b).
func testOutPoint(b byte, i uint32) wire.OutPoint {
	return wire.OutPoint{Hash: testHash(b), Index: i}
}

// testUtxo returns a plain output with the given identity and amount.
func testUtxo(b byte, i uint32, amt btcutil.Amount,
	pkScript []byte) Utxo {

	return Utxo{
		OutPoint: testOutPoint(b, i),
		Amount:   amt,
		PkScript: pkScript,
	}
}
