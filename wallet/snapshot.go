// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/bchwallet/wallet/internal/db"
	"github.com/btcsuite/bchwallet/wtxmgr"
)

// ErrActiveReservations is returned when an account with active
// reservations is restored.
var ErrActiveReservations = errors.New("account has active reservations")

// Snapshot is the persisted state of an account: entry paths with their
// used flags and caches, every known output and the transaction history.
// Addresses, reservations and leases are not part of it.
type Snapshot = db.Snapshot

// Snapshot returns the current state of the account for persistence.
// Reserved outputs are included as regular outputs.
func (a *Account) Snapshot() *Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &Snapshot{
		Entries: a.addrs.States(),
		Utxos:   a.utxos.All(),
		History: a.txs.Records(),
	}
}

// Restore replaces the state of the account with the snapshot. Addresses
// are derived again up to the highest index of every usage and the gap is
// replenished. On failure the account is left unchanged.
func (a *Account) Restore(snap *Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.reservations) > 0 {
		return fmt.Errorf("%w: %d held", ErrActiveReservations,
			len(a.reservations))
	}

	txs := wtxmgr.NewTxLog()
	for _, rec := range snap.History {
		if err := txs.Insert(rec); err != nil {
			return fmt.Errorf("restore history: %w", err)
		}
	}

	utxos := wtxmgr.NewUtxoStore(a.cfg.Clock)
	utxos.Add(snap.Utxos...)

	if err := a.addrs.Restore(snap.Entries); err != nil {
		return fmt.Errorf("restore entries: %w", err)
	}

	a.utxos = utxos
	a.txs = txs

	log.Infof("Restored account %q: %d entries, %d outputs, %d "+
		"transactions", a.cfg.Name, len(snap.Entries), utxos.Len(),
		txs.Len())

	return nil
}

// Save writes the snapshot of the account to the store.
func (a *Account) Save(ctx context.Context, store SnapshotStore) error {
	snap := a.Snapshot()

	if err := store.PutSnapshot(ctx, a.cfg.Name, snap); err != nil {
		return fmt.Errorf("save account %q: %w", a.cfg.Name, err)
	}

	return nil
}

// Load restores the account from its snapshot in the store. It fails with
// ErrSnapshotNotFound if the store has none.
func (a *Account) Load(ctx context.Context, store SnapshotStore) error {
	snap, err := store.FetchSnapshot(ctx, a.cfg.Name)
	if err != nil {
		return fmt.Errorf("load account %q: %w", a.cfg.Name, err)
	}

	return a.Restore(snap)
}
