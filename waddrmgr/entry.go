// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddrmgr

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Usage identifies the derivation branch an address belongs to.
type Usage uint8

const (
	// UsageReceiving is the external branch used for addresses handed out
	// to payers.
	UsageReceiving Usage = 0

	// UsageChange is the internal branch used for change outputs.
	UsageChange Usage = 1

	// numUsages is the number of known usage classes.
	numUsages = 2
)

// Usages lists every known usage class in branch order.
var Usages = []Usage{UsageReceiving, UsageChange}

// String returns a human-readable name for the usage.
func (u Usage) String() string {
	switch u {
	case UsageReceiving:
		return "receiving"
	case UsageChange:
		return "change"
	default:
		return fmt.Sprintf("unknown usage (%d)", uint8(u))
	}
}

// validate returns an error if the usage is not a known branch.
func (u Usage) validate() error {
	if u >= numUsages {
		str := fmt.Sprintf("usage %d is not receiving or change",
			uint8(u))
		return managerError(ErrUnknownUsage, str, nil)
	}

	return nil
}

// DerivationPath locates an entry within the account: the branch and the
// child index on it.
type DerivationPath struct {
	Usage Usage
	Index uint32
}

// String returns the path relative to the account key.
func (p DerivationPath) String() string {
	return fmt.Sprintf("%d/%d", uint8(p.Usage), p.Index)
}

// BalanceCache is the last balance observed for an entry together with the
// time it was fetched and for how long it may be trusted.
type BalanceCache struct {
	// Balance is the cached balance, if one was ever stored.
	Balance fn.Option[btcutil.Amount]

	// LastUpdated is the time the balance was stored.
	LastUpdated fn.Option[time.Time]

	// ValidFor is the duration after LastUpdated during which the balance
	// is considered fresh.
	ValidFor time.Duration
}

// Value returns the cached balance if it is still fresh at the given time.
// A stale or missing cache yields None.
func (c BalanceCache) Value(now time.Time) fn.Option[btcutil.Amount] {
	if c.ValidFor <= 0 {
		return fn.None[btcutil.Amount]()
	}

	fresh := fn.MapOptionZ(c.LastUpdated, func(at time.Time) bool {
		return now.Before(at.Add(c.ValidFor))
	})
	if !fresh {
		return fn.None[btcutil.Amount]()
	}

	return c.Balance
}

// Entry is a single derived address tracked by the inventory.
type Entry struct {
	// Address is the derived address.
	Address btcutil.Address

	// PkScript is the locking script paying to Address.
	PkScript []byte

	// Path is the derivation path of the entry.
	Path DerivationPath

	// CreatedAt is the time the entry was derived.
	CreatedAt time.Time

	// Used is true once the address has been seen on chain or handed out
	// as change for a pending spend.
	Used bool

	// Cache is the last known balance of the address.
	Cache BalanceCache
}

// String returns the encoded address along with its path.
func (e Entry) String() string {
	return fmt.Sprintf("%v (%v)", e.Address, e.Path)
}
