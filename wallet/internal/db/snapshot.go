// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package db

import (
	"context"

	"github.com/btcsuite/bchwallet/waddrmgr"
	"github.com/btcsuite/bchwallet/wtxmgr"
)

// Snapshot is the persisted state of one account. Addresses are not stored:
// they are derived again from the entry paths on restore.
type Snapshot struct {
	// Entries are the address entries, one per derivation path.
	Entries []waddrmgr.EntryState

	// Utxos are the unspent outputs, reserved or not.
	Utxos []wtxmgr.Utxo

	// History holds the transaction log records.
	History []wtxmgr.TxRecord
}

// SnapshotStore persists account snapshots keyed by account name.
type SnapshotStore interface {
	// PutSnapshot replaces the snapshot stored for the account.
	PutSnapshot(ctx context.Context, account string, snap *Snapshot) error

	// FetchSnapshot returns the snapshot stored for the account. It
	// fails with ErrSnapshotNotFound if there is none.
	FetchSnapshot(ctx context.Context, account string) (*Snapshot, error)

	// DeleteSnapshot removes the snapshot of the account, if any.
	DeleteSnapshot(ctx context.Context, account string) error

	// Close releases the underlying database.
	Close() error
}
