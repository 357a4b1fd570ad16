// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wtxmgr

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/clock"
)

// LockID represents a unique context-specific ID assigned to an output lock.
type LockID [32]byte

// Utxo is an unspent output paying to one of the account's addresses.
type Utxo struct {
	// OutPoint identifies the output.
	OutPoint wire.OutPoint

	// Amount is the value of the output.
	Amount btcutil.Amount

	// PkScript is the locking script of the output.
	PkScript []byte

	// Token is the token prefix of the output, nil for plain outputs.
	Token *TokenData
}

// HasToken returns true if the output carries tokens.
func (u *Utxo) HasToken() bool {
	return u.Token != nil
}

// TxOut returns the output as a wire.TxOut.
func (u *Utxo) TxOut() *wire.TxOut {
	return wire.NewTxOut(int64(u.Amount), u.PkScript)
}

// copyUtxo returns a deep copy of the output.
func copyUtxo(u *Utxo) Utxo {
	return Utxo{
		OutPoint: u.OutPoint,
		Amount:   u.Amount,
		PkScript: append([]byte(nil), u.PkScript...),
		Token:    u.Token.Copy(),
	}
}

// LockedOutput is a type that contains an outpoint of an UTXO and its lock
// lease information.
type LockedOutput struct {
	Outpoint wire.OutPoint
	LockID   LockID
	LockedAt time.Time
}

// lease records who locked an output and when.
type lease struct {
	id       LockID
	lockedAt time.Time
}

// UtxoStore is the in-memory set of known unspent outputs keyed by outpoint.
// Outputs can be leased to a LockID, which withdraws them from selection
// until the lease is released. Leases never expire.
//
// NOTE: UtxoStore is not safe for concurrent use. The owning account
// serializes access to it.
type UtxoStore struct {
	// clock is used to timestamp leases.
	clock clock.Clock

	utxos  map[wire.OutPoint]*Utxo
	leases map[wire.OutPoint]lease
}

// NewUtxoStore creates an empty store.
func NewUtxoStore(clk clock.Clock) *UtxoStore {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	return &UtxoStore{
		clock:  clk,
		utxos:  make(map[wire.OutPoint]*Utxo),
		leases: make(map[wire.OutPoint]lease),
	}
}

// Len returns the number of known outputs, leased or not.
func (s *UtxoStore) Len() int {
	return len(s.utxos)
}

// Add inserts the outputs, replacing any output with the same outpoint.
// Leases of replaced outputs are kept.
func (s *UtxoStore) Add(utxos ...Utxo) {
	for i := range utxos {
		u := copyUtxo(&utxos[i])
		s.utxos[u.OutPoint] = &u
	}
}

// Remove deletes the outputs and any lease on them. It returns the number of
// outputs that were actually known.
func (s *UtxoStore) Remove(ops ...wire.OutPoint) int {
	var removed int
	for _, op := range ops {
		if _, ok := s.utxos[op]; !ok {
			continue
		}

		if l, ok := s.leases[op]; ok {
			log.Debugf("Dropping lease %x on removed output %v",
				l.id[:4], op)
		}

		delete(s.utxos, op)
		delete(s.leases, op)
		removed++
	}

	return removed
}

// Replace swaps the outputs paying to pkScript for the given set. Outputs
// paying to other scripts are untouched. Outputs that survive the refresh
// keep their lease. Every output in utxos must pay to pkScript.
//
// The leases of the outputs that were dropped are returned so the caller can
// detach them from their owners.
func (s *UtxoStore) Replace(pkScript []byte,
	utxos []Utxo) ([]LockedOutput, error) {

	fresh := make(map[wire.OutPoint]struct{}, len(utxos))
	for _, u := range utxos {
		if !bytes.Equal(u.PkScript, pkScript) {
			return nil, fmt.Errorf("%w: %v", ErrScriptMismatch,
				u.OutPoint)
		}

		fresh[u.OutPoint] = struct{}{}
	}

	var stale []wire.OutPoint
	for op, u := range s.utxos {
		if !bytes.Equal(u.PkScript, pkScript) {
			continue
		}

		if _, ok := fresh[op]; !ok {
			stale = append(stale, op)
		}
	}

	dropped := s.Leases(stale...)
	removed := s.Remove(stale...)
	s.Add(utxos...)

	log.Tracef("Replaced outputs of script %x: %d removed, %d present",
		pkScript, removed, len(utxos))

	return dropped, nil
}

// Leases returns the current leases of the given outputs in the given
// order. Outputs that are not leased are skipped.
func (s *UtxoStore) Leases(ops ...wire.OutPoint) []LockedOutput {
	var locked []LockedOutput
	for _, op := range ops {
		l, ok := s.leases[op]
		if !ok {
			continue
		}

		locked = append(locked, LockedOutput{
			Outpoint: op,
			LockID:   l.id,
			LockedAt: l.lockedAt,
		})
	}

	return locked
}

// LeasedTo returns the outputs among ops that are currently leased to id, in
// the given order.
func (s *UtxoStore) LeasedTo(id LockID,
	ops []wire.OutPoint) []wire.OutPoint {

	owned := make([]wire.OutPoint, 0, len(ops))
	for _, op := range ops {
		if l, ok := s.leases[op]; ok && l.id == id {
			owned = append(owned, op)
		}
	}

	return owned
}

// Utxo returns the output with the given outpoint.
func (s *UtxoStore) Utxo(op wire.OutPoint) (Utxo, bool) {
	u, ok := s.utxos[op]
	if !ok {
		return Utxo{}, false
	}

	return copyUtxo(u), true
}

// IsReserved returns true if the output is currently leased.
func (s *UtxoStore) IsReserved(op wire.OutPoint) bool {
	_, ok := s.leases[op]
	return ok
}

// All returns every known output, leased or not, ordered by outpoint.
func (s *UtxoStore) All() []Utxo {
	all := make([]Utxo, 0, len(s.utxos))
	for _, u := range s.utxos {
		all = append(all, copyUtxo(u))
	}

	sort.Slice(all, func(i, j int) bool {
		return outPointLess(&all[i].OutPoint, &all[j].OutPoint)
	})

	return all
}

// Unspent returns every output that is not leased, ordered by outpoint.
func (s *UtxoStore) Unspent() []Utxo {
	all := s.All()

	unspent := all[:0]
	for _, u := range all {
		if !s.IsReserved(u.OutPoint) {
			unspent = append(unspent, u)
		}
	}

	return unspent
}

// Sorted returns the unleased outputs ordered by less. Outputs that compare
// equal keep their outpoint order.
func (s *UtxoStore) Sorted(less func(a, b *Utxo) bool) []Utxo {
	unspent := s.Unspent()
	sort.SliceStable(unspent, func(i, j int) bool {
		return less(&unspent[i], &unspent[j])
	})

	return unspent
}

// SortedByAmount returns the unleased outputs ordered by descending amount.
func (s *UtxoStore) SortedByAmount() []Utxo {
	return s.Sorted(func(a, b *Utxo) bool {
		return a.Amount > b.Amount
	})
}

// Balance returns the total value of unleased and leased outputs.
func (s *UtxoStore) Balance() (available, reserved btcutil.Amount) {
	for op, u := range s.utxos {
		if s.IsReserved(op) {
			reserved += u.Amount
			continue
		}

		available += u.Amount
	}

	return available, reserved
}

// Reserve leases all outputs to the given id. The call is all-or-nothing:
// if any output is unknown or leased to another id, no lease is taken and
// the returned error matches ErrInsufficientFunds. Outputs already leased to
// the same id are accepted.
func (s *UtxoStore) Reserve(id LockID, ops []wire.OutPoint) error {
	for _, op := range ops {
		if _, ok := s.utxos[op]; !ok {
			return fmt.Errorf("%w: %w: %v", ErrInsufficientFunds,
				ErrUnknownOutput, op)
		}

		if l, ok := s.leases[op]; ok && l.id != id {
			return fmt.Errorf("%w: %w: %v", ErrInsufficientFunds,
				ErrOutputAlreadyLocked, op)
		}
	}

	now := s.clock.Now()
	for _, op := range ops {
		if _, ok := s.leases[op]; ok {
			continue
		}

		s.leases[op] = lease{id: id, lockedAt: now}
	}

	log.Tracef("Leased %d outputs to %x", len(ops), id[:4])

	return nil
}

// Release returns the outputs leased to id to the selectable pool. Outputs
// that are unknown or not leased are skipped. If any output is leased to a
// different id, nothing is released and ErrOutputUnlockNotAllowed is
// returned.
func (s *UtxoStore) Release(id LockID, ops []wire.OutPoint) error {
	for _, op := range ops {
		if l, ok := s.leases[op]; ok && l.id != id {
			return fmt.Errorf("%w: %v", ErrOutputUnlockNotAllowed,
				op)
		}
	}

	for _, op := range ops {
		delete(s.leases, op)
	}

	log.Tracef("Released %d outputs from %x", len(ops), id[:4])

	return nil
}

// LockedOutputs returns every current lease ordered by outpoint.
func (s *UtxoStore) LockedOutputs() []LockedOutput {
	locked := make([]LockedOutput, 0, len(s.leases))
	for op, l := range s.leases {
		locked = append(locked, LockedOutput{
			Outpoint: op,
			LockID:   l.id,
			LockedAt: l.lockedAt,
		})
	}

	sort.Slice(locked, func(i, j int) bool {
		return outPointLess(&locked[i].Outpoint, &locked[j].Outpoint)
	})

	return locked
}

// outPointLess orders outpoints by hash bytes and then by index.
func outPointLess(a, b *wire.OutPoint) bool {
	if c := bytes.Compare(a.Hash[:], b.Hash[:]); c != 0 {
		return c < 0
	}

	return a.Index < b.Index
}
