// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddrmgr

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ccoveille/go-safecast"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// DefaultGapLimit is the number of trailing unused addresses kept per
	// usage when no other limit is configured.
	DefaultGapLimit = 20

	// DefaultCacheValidity is how long a cached balance is trusted when no
	// other duration is configured.
	DefaultCacheValidity = 10 * time.Minute
)

// Config houses the parameters of an Inventory.
type Config struct {
	// GapLimit is the minimum number of trailing unused entries per usage.
	GapLimit uint32

	// Deriver derives the address of every new entry.
	Deriver AddressDeriver

	// CacheValidity is the lifetime of a cached balance.
	CacheValidity time.Duration

	// Clock is the time source used for creation and cache timestamps.
	Clock clock.Clock
}

// entryRef locates an entry inside the per-usage arenas.
type entryRef struct {
	usage Usage
	index uint32
}

// EntryState is the persisted part of an entry. The address itself is
// re-derived from the path on restore.
type EntryState struct {
	Path  DerivationPath
	Used  bool
	Cache BalanceCache
}

// Inventory generates and indexes the addresses of one account. Entries are
// stored in one arena per usage, and an address index points into the
// arenas.
//
// NOTE: Inventory is not safe for concurrent use. The owning account
// serializes access to it.
type Inventory struct {
	cfg Config

	arenas      [numUsages][]Entry
	addrIndex   map[string]entryRef
	scriptIndex map[string]entryRef

	notifier *entryNotifier
}

// NewInventory creates an empty inventory.
func NewInventory(cfg Config) (*Inventory, error) {
	if cfg.Deriver == nil {
		return nil, managerError(ErrInvalidConfig, "missing deriver",
			nil)
	}

	if cfg.GapLimit == 0 {
		return nil, managerError(ErrInvalidConfig,
			"gap limit must be positive", nil)
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	return &Inventory{
		cfg:         cfg,
		addrIndex:   make(map[string]entryRef),
		scriptIndex: make(map[string]entryRef),
		notifier:    newEntryNotifier(),
	}, nil
}

// GapLimit returns the configured gap limit.
func (i *Inventory) GapLimit() uint32 {
	return i.cfg.GapLimit
}

// entry returns a pointer into the arena for the given reference.
func (i *Inventory) entry(ref entryRef) *Entry {
	return &i.arenas[ref.usage][ref.index]
}

// lookup resolves an address to its arena reference.
func (i *Inventory) lookup(addr btcutil.Address) (entryRef, error) {
	ref, ok := i.addrIndex[addr.EncodeAddress()]
	if !ok {
		str := fmt.Sprintf("address %s not found", addr)
		return entryRef{}, managerError(ErrAddressNotFound, str, nil)
	}

	return ref, nil
}

// UnusedTail returns the number of trailing entries of the usage that have
// never been used.
func (i *Inventory) UnusedTail(usage Usage) uint32 {
	if usage.validate() != nil {
		return 0
	}

	var (
		arena = i.arenas[usage]
		tail  uint32
	)
	for j := len(arena) - 1; j >= 0 && !arena[j].Used; j-- {
		tail++
	}

	return tail
}

// HighestIndex returns the index of the last entry of the usage, or None if
// the usage has no entries yet.
func (i *Inventory) HighestIndex(usage Usage) fn.Option[uint32] {
	if usage.validate() != nil || len(i.arenas[usage]) == 0 {
		return fn.None[uint32]()
	}

	return fn.Some(uint32(len(i.arenas[usage]) - 1))
}

// ensureGap generates entries until the unused tail of the usage is at
// least the gap limit.
func (i *Inventory) ensureGap(usage Usage) error {
	tail := i.UnusedTail(usage)
	if tail >= i.cfg.GapLimit {
		return nil
	}

	_, err := i.Generate(usage, i.cfg.GapLimit-tail)

	return err
}

// SelectNext returns the first unused entry of the usage in sequence order,
// replenishing the gap first.
func (i *Inventory) SelectNext(usage Usage) (Entry, error) {
	if err := usage.validate(); err != nil {
		return Entry{}, err
	}

	if err := i.ensureGap(usage); err != nil {
		return Entry{}, err
	}

	for _, entry := range i.arenas[usage] {
		if !entry.Used {
			return entry, nil
		}
	}

	str := fmt.Sprintf("no unused %v entry after replenishing gap", usage)

	return Entry{}, managerError(ErrEntryNotFound, str, nil)
}

// Mark sets the used flag of the entry owning the address. A transition to
// used replenishes the gap of the entry's usage. If the gap cannot be
// replenished the entry keeps its previous flag.
func (i *Inventory) Mark(addr btcutil.Address, used bool) (Entry, error) {
	ref, err := i.lookup(addr)
	if err != nil {
		return Entry{}, err
	}

	entry := i.entry(ref)
	wasUsed := entry.Used
	entry.Used = used

	if used && !wasUsed {
		if err := i.ensureGap(ref.usage); err != nil {
			// Generate is all-or-nothing, so the arena did not
			// grow and entry is still valid.
			entry.Used = wasUsed

			return Entry{}, err
		}

		log.Debugf("Marked %v entry %v used", ref.usage,
			i.entry(ref).Path)
	}

	// The arena may have grown, so resolve the reference again.
	return *i.entry(ref), nil
}

// Generate derives count new sequential entries for the usage. The batch is
// all-or-nothing: a derivation failure or collision leaves the inventory
// unchanged. New entries are published to subscribers.
func (i *Inventory) Generate(usage Usage, count uint32) ([]Entry, error) {
	if err := usage.validate(); err != nil {
		return nil, err
	}

	next, err := safecast.ToUint32(len(i.arenas[usage]))
	if err != nil {
		return nil, managerError(ErrIndexOutOfBounds,
			"entry count overflows index", err)
	}

	if count > 0 && uint64(next)+uint64(count)-1 > MaxIndex {
		str := fmt.Sprintf("cannot derive %d %v entries past index "+
			"%d", count, usage, next)
		return nil, managerError(ErrIndexOutOfBounds, str, nil)
	}

	var (
		now     = i.cfg.Clock.Now()
		batch   = make([]Entry, 0, count)
		inBatch = make(map[string]struct{}, count)
	)
	for j := uint32(0); j < count; j++ {
		path := DerivationPath{Usage: usage, Index: next + j}

		addr, err := i.cfg.Deriver.DeriveAddress(usage, path.Index)
		if err != nil {
			str := fmt.Sprintf("failed to derive %v", path)
			return nil, managerError(ErrDerivation, str, err)
		}

		key := addr.EncodeAddress()
		if ref, ok := i.addrIndex[key]; ok {
			str := fmt.Sprintf("derived address %s for %v already "+
				"belongs to %v", key, path, i.entry(ref).Path)
			return nil, managerError(ErrEntryDuplicated, str, nil)
		}

		if _, ok := inBatch[key]; ok {
			str := fmt.Sprintf("address %s derived twice", key)
			return nil, managerError(ErrAddressDuplicated, str, nil)
		}
		inBatch[key] = struct{}{}

		pkScript, err := txscript.PayToAddrScript(addr)
		if err != nil {
			str := fmt.Sprintf("failed to build script for %v", path)
			return nil, managerError(ErrDerivation, str, err)
		}

		batch = append(batch, Entry{
			Address:   addr,
			PkScript:  pkScript,
			Path:      path,
			CreatedAt: now,
		})
	}

	for _, entry := range batch {
		ref := entryRef{usage: usage, index: entry.Path.Index}
		i.arenas[usage] = append(i.arenas[usage], entry)
		i.addrIndex[entry.Address.EncodeAddress()] = ref
		i.scriptIndex[string(entry.PkScript)] = ref
	}

	if count > 0 {
		log.Debugf("Generated %d %v entries starting at index %d",
			count, usage, next)
	}

	i.notifier.notify(batch)

	return batch, nil
}

// Entries returns a copy of all entries of the usage in index order.
func (i *Inventory) Entries(usage Usage) []Entry {
	if usage.validate() != nil {
		return nil
	}

	entries := make([]Entry, len(i.arenas[usage]))
	copy(entries, i.arenas[usage])

	return entries
}

// Lookup returns the entry owning the address.
func (i *Inventory) Lookup(addr btcutil.Address) (Entry, error) {
	ref, err := i.lookup(addr)
	if err != nil {
		return Entry{}, err
	}

	return *i.entry(ref), nil
}

// LookupScript returns the entry whose locking script matches pkScript.
func (i *Inventory) LookupScript(pkScript []byte) (Entry, error) {
	ref, ok := i.scriptIndex[string(pkScript)]
	if !ok {
		return Entry{}, managerError(ErrAddressNotFound,
			"script not found", nil)
	}

	return *i.entry(ref), nil
}

// UpdateCache stores a freshly fetched balance for the address.
func (i *Inventory) UpdateCache(addr btcutil.Address,
	balance btcutil.Amount) (Entry, error) {

	ref, err := i.lookup(addr)
	if err != nil {
		str := fmt.Sprintf("cannot cache balance of %s", addr)
		return Entry{}, managerError(ErrCacheUpdateFailed, str, err)
	}

	entry := i.entry(ref)
	entry.Cache = BalanceCache{
		Balance:     fn.Some(balance),
		LastUpdated: fn.Some(i.cfg.Clock.Now()),
		ValidFor:    i.cfg.CacheValidity,
	}

	return *entry, nil
}

// InvalidateCache drops the cached balance of the address.
func (i *Inventory) InvalidateCache(addr btcutil.Address) error {
	ref, err := i.lookup(addr)
	if err != nil {
		str := fmt.Sprintf("cannot invalidate cache of %s", addr)
		return managerError(ErrCacheUpdateFailed, str, err)
	}

	i.entry(ref).Cache = BalanceCache{}

	return nil
}

// CachedBalance returns the cached balance of the address. It fails with
// ErrCacheInvalid if no fresh balance is cached.
func (i *Inventory) CachedBalance(addr btcutil.Address) (btcutil.Amount,
	error) {

	ref, err := i.lookup(addr)
	if err != nil {
		return 0, err
	}

	cache := i.entry(ref).Cache
	balance, err := cache.Value(i.cfg.Clock.Now()).UnwrapOrErr(
		managerError(ErrCacheInvalid, fmt.Sprintf("no fresh balance "+
			"cached for %s", addr), nil),
	)
	if err != nil {
		return 0, err
	}

	return balance, nil
}

// TotalCachedBalance sums the fresh cached balances of all entries. Stale
// or missing caches contribute nothing.
func (i *Inventory) TotalCachedBalance() btcutil.Amount {
	var (
		now   = i.cfg.Clock.Now()
		total btcutil.Amount
	)
	for _, arena := range i.arenas {
		for _, entry := range arena {
			total += entry.Cache.Value(now).UnwrapOr(0)
		}
	}

	return total
}

// States returns the persisted part of every entry, receiving entries
// first.
func (i *Inventory) States() []EntryState {
	var states []EntryState
	for _, arena := range i.arenas {
		for _, entry := range arena {
			states = append(states, EntryState{
				Path:  entry.Path,
				Used:  entry.Used,
				Cache: entry.Cache,
			})
		}
	}

	return states
}

// Restore replaces the content of the inventory with the given entry
// states. Every usage is re-derived up to the highest index found in
// states, the stored flags and caches are applied, and finally the gap is
// replenished. On failure the inventory is left unchanged. The restored
// entries are published to subscribers.
func (i *Inventory) Restore(states []EntryState) error {
	scratch := &Inventory{
		cfg:         i.cfg,
		addrIndex:   make(map[string]entryRef),
		scriptIndex: make(map[string]entryRef),
		notifier:    newEntryNotifier(),
	}
	if err := scratch.restore(states); err != nil {
		return err
	}

	i.arenas = scratch.arenas
	i.addrIndex = scratch.addrIndex
	i.scriptIndex = scratch.scriptIndex

	var restored []Entry
	for _, arena := range i.arenas {
		restored = append(restored, arena...)
	}
	i.notifier.notify(restored)

	log.Infof("Restored %d entries from %d stored states", len(restored),
		len(states))

	return nil
}

// restore rebuilds an empty inventory from states.
func (i *Inventory) restore(states []EntryState) error {
	var (
		highest [numUsages]fn.Option[uint32]
		seen    = make(map[DerivationPath]struct{}, len(states))
	)
	for _, state := range states {
		if err := state.Path.Usage.validate(); err != nil {
			return err
		}

		if _, ok := seen[state.Path]; ok {
			str := fmt.Sprintf("path %v restored twice", state.Path)
			return managerError(ErrAddressDuplicated, str, nil)
		}
		seen[state.Path] = struct{}{}

		if state.Path.Index > MaxIndex {
			str := fmt.Sprintf("restored index %d is hardened",
				state.Path.Index)
			return managerError(ErrIndexOutOfBounds, str, nil)
		}

		usage := state.Path.Usage
		cur := highest[usage].UnwrapOr(0)
		if highest[usage].IsNone() || state.Path.Index > cur {
			highest[usage] = fn.Some(state.Path.Index)
		}
	}

	for _, usage := range Usages {
		var err error
		highest[usage].WhenSome(func(top uint32) {
			_, err = i.Generate(usage, top+1)
		})
		if err != nil {
			return err
		}
	}

	for _, state := range states {
		ref := entryRef{usage: state.Path.Usage, index: state.Path.Index}
		entry := i.entry(ref)
		entry.Used = state.Used
		entry.Cache = state.Cache
	}

	for _, usage := range Usages {
		if err := i.ensureGap(usage); err != nil {
			return err
		}
	}

	return nil
}

// Subscribe registers a new observer of generated entries.
func (i *Inventory) Subscribe() *Subscription {
	return i.notifier.subscribe()
}

// Stop cancels every subscription.
func (i *Inventory) Stop() {
	i.notifier.stop()
}
