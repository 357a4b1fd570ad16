// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/btcsuite/bchwallet/waddrmgr"
	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ReservationID is the opaque handle of a spend reservation. It doubles as
// the lock id of the reserved outputs.
type ReservationID [32]byte

// String returns the hex encoding of the id.
func (id ReservationID) String() string {
	return hex.EncodeToString(id[:])
}

// newReservationID returns a random reservation id.
func newReservationID() (ReservationID, error) {
	var id ReservationID
	if _, err := rand.Read(id[:]); err != nil {
		return ReservationID{}, fmt.Errorf("generate reservation "+
			"id: %w", err)
	}

	return id, nil
}

// Reservation withdraws a set of outputs and a change address from
// selection while the spend using them is built and broadcast.
type Reservation struct {
	// ID identifies the reservation.
	ID ReservationID

	// Outpoints are the reserved outputs.
	Outpoints []wire.OutPoint

	// Change is the change entry, as it was right after the reservation
	// forced it used.
	Change waddrmgr.Entry

	// PrevChangeUsed is the used flag the change entry gets back when the
	// reservation is cancelled.
	PrevChangeUsed bool

	// ReservedAt is the time the reservation was taken. Reservations
	// never expire on their own.
	ReservedAt time.Time

	// State is the state of the reservation.
	State ReservationState
}

// copyReservation returns a deep copy of the reservation.
func copyReservation(r *Reservation) Reservation {
	c := *r
	c.Outpoints = append([]wire.OutPoint(nil), r.Outpoints...)

	return c
}

// ReserveSpend withdraws the outputs and the change address from selection.
//
// The outputs are leased all-or-nothing: if any of them is unknown or held
// by another reservation, the call fails with an error matching
// ErrInsufficientFunds and nothing changes. The change entry is forced used
// and its usage gap is replenished, so the next call to NextAddress hands
// out a different address.
func (a *Account) ReserveSpend(ops []wire.OutPoint,
	change btcutil.Address) (*Reservation, error) {

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.reserveSpend(ops, change)
}

// ReserveSpendNextChange reserves the outputs together with the first
// unused change entry.
func (a *Account) ReserveSpendNextChange(
	ops []wire.OutPoint) (*Reservation, error) {

	a.mu.Lock()
	defer a.mu.Unlock()

	change, err := a.addrs.SelectNext(waddrmgr.UsageChange)
	if err != nil {
		return nil, err
	}

	return a.reserveSpend(ops, change.Address)
}

// reserveSpend implements ReserveSpend.
//
// NOTE: The caller must hold the account lock.
func (a *Account) reserveSpend(ops []wire.OutPoint,
	changeAddr btcutil.Address) (*Reservation, error) {

	if len(ops) == 0 {
		return nil, ErrEmptyReservation
	}

	change, err := a.addrs.Lookup(changeAddr)
	if err != nil {
		return nil, err
	}

	changeKey := changeAddr.EncodeAddress()
	if holder, ok := a.changeHolds[changeKey]; ok {
		return nil, fmt.Errorf("%w: %s held by %v", ErrChangeInUse,
			changeKey, holder)
	}

	id, err := newReservationID()
	if err != nil {
		return nil, err
	}

	ops = append([]wire.OutPoint(nil), ops...)
	if err := a.utxos.Reserve(wtxmgr.LockID(id), ops); err != nil {
		return nil, fmt.Errorf("reserve outputs: %w", err)
	}

	prevUsed := change.Used
	change, err = a.addrs.Mark(changeAddr, true)
	if err != nil {
		// Undo in reverse order. Neither call can fail: the lease is
		// ours and the address is known.
		_ = a.utxos.Release(wtxmgr.LockID(id), ops)
		_, _ = a.addrs.Mark(changeAddr, prevUsed)

		return nil, fmt.Errorf("consume change address: %w", err)
	}

	res := &Reservation{
		ID:             id,
		Outpoints:      ops,
		Change:         change,
		PrevChangeUsed: prevUsed,
		ReservedAt:     a.cfg.Clock.Now(),
		State:          ReservationActive,
	}
	a.reservations[id] = res
	a.changeHolds[changeKey] = id

	log.Debugf("Reserved %d outputs and change %s under %v", len(ops),
		changeKey, id)

	c := copyReservation(res)

	return &c, nil
}

// Release ends the reservation with the given outcome.
//
// A completed spend removes the reserved outputs from the account, since
// they are now spent, and keeps the change address used. A cancelled spend
// returns the outputs to the selectable pool and restores the change
// address to its used flag from before the reservation. Releasing an
// unknown or already released id is a no-op.
func (a *Account) Release(id ReservationID, outcome Outcome) error {
	if _, err := outcome.state(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	res, ok := a.reservations[id]
	if !ok {
		log.Debugf("Ignoring release of unknown reservation %v", id)
		return nil
	}

	// Only outputs still leased to this reservation are touched. An
	// output that left the store and came back belongs to whoever
	// leased it since.
	owned := a.utxos.LeasedTo(wtxmgr.LockID(id), res.Outpoints)

	switch outcome {
	case OutcomeCompleted:
		removed := a.utxos.Remove(owned...)
		log.Debugf("Reservation %v completed, %d outputs spent", id,
			removed)

	case OutcomeCancelled:
		err := a.utxos.Release(wtxmgr.LockID(id), owned)
		if err != nil {
			return fmt.Errorf("release outputs: %w", err)
		}

		_, err = a.addrs.Mark(res.Change.Address, res.PrevChangeUsed)
		if err != nil {
			return fmt.Errorf("restore change address: %w", err)
		}

		log.Debugf("Reservation %v cancelled, %d outputs released", id,
			len(owned))
	}

	if err := res.State.transition(outcome); err != nil {
		return err
	}

	delete(a.reservations, id)
	delete(a.changeHolds, res.Change.Address.EncodeAddress())

	return nil
}

// detachLeases removes outputs that left the store from the reservations
// that held them.
//
// NOTE: The caller must hold the account lock.
func (a *Account) detachLeases(dropped []wtxmgr.LockedOutput) {
	for _, l := range dropped {
		res, ok := a.reservations[ReservationID(l.LockID)]
		if !ok {
			continue
		}

		res.Outpoints = fn.Filter(
			res.Outpoints, func(op wire.OutPoint) bool {
				return op != l.Outpoint
			},
		)

		log.Debugf("Output %v left the account, detached from "+
			"reservation %v", l.Outpoint, res.ID)
	}
}

// Reservations returns the active reservations, oldest first.
func (a *Account) Reservations() []Reservation {
	a.mu.Lock()
	defer a.mu.Unlock()

	list := make([]Reservation, 0, len(a.reservations))
	for _, res := range a.reservations {
		list = append(list, copyReservation(res))
	}

	sort.Slice(list, func(i, j int) bool {
		if !list[i].ReservedAt.Equal(list[j].ReservedAt) {
			return list[i].ReservedAt.Before(list[j].ReservedAt)
		}

		return bytes.Compare(list[i].ID[:], list[j].ID[:]) < 0
	})

	return list
}

// LockedOutputs returns the leases of every reserved output.
func (a *Account) LockedOutputs() []wtxmgr.LockedOutput {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.utxos.LockedOutputs()
}
