// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddrmgr

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestNewInventoryConfig checks that invalid configurations are rejected.
func TestNewInventoryConfig(t *testing.T) {
	t.Parallel()

	_, err := NewInventory(Config{GapLimit: 1})
	require.True(t, IsError(err, ErrInvalidConfig))

	_, err = NewInventory(Config{Deriver: seqDeriver{}})
	require.True(t, IsError(err, ErrInvalidConfig))

	inv, err := NewInventory(Config{GapLimit: 3, Deriver: seqDeriver{}})
	require.NoError(t, err)
	require.Equal(t, uint32(3), inv.GapLimit())
}

// TestSelectNextEmptyInventory checks that selecting from an empty usage
// generates exactly the gap limit and returns the first entry.
func TestSelectNextEmptyInventory(t *testing.T) {
	t.Parallel()

	inv, _ := newTestInventory(t, 2)

	entry, err := inv.SelectNext(UsageReceiving)
	require.NoError(t, err)
	require.Equal(t, uint32(0), entry.Path.Index)
	require.Equal(t, UsageReceiving, entry.Path.Usage)
	require.False(t, entry.Used)
	require.Equal(t, testTime, entry.CreatedAt)

	require.Len(t, inv.Entries(UsageReceiving), 2)
	require.Equal(t, uint32(2), inv.UnusedTail(UsageReceiving))

	// The change branch is untouched.
	require.Empty(t, inv.Entries(UsageChange))
	require.True(t, inv.HighestIndex(UsageChange).IsNone())

	// Selecting again without marking returns the same entry and does not
	// grow the arena.
	again, err := inv.SelectNext(UsageReceiving)
	require.NoError(t, err)
	require.Equal(t, entry.Address, again.Address)
	require.Len(t, inv.Entries(UsageReceiving), 2)
}

// TestSelectNextFirstUnused checks that selection returns the first unused
// entry in sequence order, even when it sits before a used one.
func TestSelectNextFirstUnused(t *testing.T) {
	t.Parallel()

	inv, _ := newTestInventory(t, 2)

	_, err := inv.Generate(UsageChange, 3)
	require.NoError(t, err)

	entries := inv.Entries(UsageChange)
	_, err = inv.Mark(entries[1].Address, true)
	require.NoError(t, err)

	entry, err := inv.SelectNext(UsageChange)
	require.NoError(t, err)
	require.Equal(t, uint32(0), entry.Path.Index)

	_, err = inv.Mark(entries[0].Address, true)
	require.NoError(t, err)

	entry, err = inv.SelectNext(UsageChange)
	require.NoError(t, err)
	require.Equal(t, uint32(2), entry.Path.Index)
}

// TestMarkReplenishesGap checks that marking the tail entry used derives new
// entries to restore the gap.
func TestMarkReplenishesGap(t *testing.T) {
	t.Parallel()

	inv, _ := newTestInventory(t, 3)

	entry, err := inv.SelectNext(UsageReceiving)
	require.NoError(t, err)

	marked, err := inv.Mark(entry.Address, true)
	require.NoError(t, err)
	require.True(t, marked.Used)
	require.Equal(t, uint32(3), inv.UnusedTail(UsageReceiving))
	require.Len(t, inv.Entries(UsageReceiving), 4)

	// Marking the same address again is a no-op for the arena.
	_, err = inv.Mark(entry.Address, true)
	require.NoError(t, err)
	require.Len(t, inv.Entries(UsageReceiving), 4)

	// Marking an entry unused restores it without shrinking the arena.
	unmarked, err := inv.Mark(entry.Address, false)
	require.NoError(t, err)
	require.False(t, unmarked.Used)
	require.Len(t, inv.Entries(UsageReceiving), 4)
}

// TestMarkUnknownAddress checks that an untracked address is reported.
func TestMarkUnknownAddress(t *testing.T) {
	t.Parallel()

	inv, _ := newTestInventory(t, 2)

	_, err := inv.Mark(pathAddress(UsageChange, 99), true)
	require.True(t, IsError(err, ErrAddressNotFound))

	_, err = inv.Lookup(pathAddress(UsageChange, 99))
	require.True(t, IsError(err, ErrAddressNotFound))
}

// TestMarkGapFailure checks that an entry keeps its flag when the gap
// behind it cannot be replenished.
func TestMarkGapFailure(t *testing.T) {
	t.Parallel()

	deriver := &mockDeriver{}
	deriver.On("DeriveAddress", UsageReceiving, uint32(0)).Return(
		pathAddress(UsageReceiving, 0), nil,
	)
	deriver.On("DeriveAddress", UsageReceiving, uint32(1)).Return(
		pathAddress(UsageReceiving, 1), nil,
	)
	deriver.On("DeriveAddress", UsageReceiving, uint32(2)).Return(
		nil, errDerive,
	)

	inv, err := NewInventory(Config{
		GapLimit: 2,
		Deriver:  deriver,
	})
	require.NoError(t, err)
	t.Cleanup(inv.Stop)

	entries, err := inv.Generate(UsageReceiving, 2)
	require.NoError(t, err)

	_, err = inv.Mark(entries[0].Address, true)
	require.True(t, IsError(err, ErrDerivation), "got %v", err)

	entry, err := inv.Lookup(entries[0].Address)
	require.NoError(t, err)
	require.False(t, entry.Used)
	require.Equal(t, uint32(2), inv.UnusedTail(UsageReceiving))
	require.Len(t, inv.Entries(UsageReceiving), 2)

	deriver.AssertExpectations(t)
}

// TestLookup checks the address and script indexes.
func TestLookup(t *testing.T) {
	t.Parallel()

	inv, _ := newTestInventory(t, 2)

	_, err := inv.Generate(UsageChange, 2)
	require.NoError(t, err)

	want := pathAddress(UsageChange, 1)
	entry, err := inv.Lookup(want)
	require.NoError(t, err)
	require.Equal(t, DerivationPath{Usage: UsageChange, Index: 1},
		entry.Path)

	pkScript, err := txscript.PayToAddrScript(want)
	require.NoError(t, err)
	require.Equal(t, pkScript, entry.PkScript)

	byScript, err := inv.LookupScript(pkScript)
	require.NoError(t, err)
	require.Equal(t, entry.Path, byScript.Path)

	_, err = inv.LookupScript([]byte{0x51})
	require.True(t, IsError(err, ErrAddressNotFound))
}

// TestGenerateFailures checks that failed batches leave the inventory
// unchanged.
func TestGenerateFailures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		setup func(m *mockDeriver)
		count uint32
		code  ErrorCode
	}{
		{
			name: "derivation error",
			setup: func(m *mockDeriver) {
				m.On("DeriveAddress", UsageReceiving,
					uint32(0)).Return(
					pathAddress(UsageReceiving, 0), nil,
				)
				m.On("DeriveAddress", UsageReceiving,
					uint32(1)).Return(nil, errDerive)
			},
			count: 2,
			code:  ErrDerivation,
		},
		{
			name: "collision within batch",
			setup: func(m *mockDeriver) {
				addr := pathAddress(UsageReceiving, 0)
				m.On("DeriveAddress", UsageReceiving,
					uint32(0)).Return(addr, nil)
				m.On("DeriveAddress", UsageReceiving,
					uint32(1)).Return(addr, nil)
			},
			count: 2,
			code:  ErrAddressDuplicated,
		},
		{
			name:  "index out of bounds",
			setup: func(m *mockDeriver) {},
			count: MaxIndex + 2,
			code:  ErrIndexOutOfBounds,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			deriver := &mockDeriver{}
			tc.setup(deriver)

			inv, err := NewInventory(Config{
				GapLimit: 1,
				Deriver:  deriver,
			})
			require.NoError(t, err)

			_, err = inv.Generate(UsageReceiving, tc.count)
			require.True(t, IsError(err, tc.code), "got %v", err)
			require.Empty(t, inv.Entries(UsageReceiving))
		})
	}
}

// TestGenerateEntryDuplicated checks that a deriver returning an address
// that is already tracked is reported as a duplicated entry.
func TestGenerateEntryDuplicated(t *testing.T) {
	t.Parallel()

	deriver := &mockDeriver{}
	addr := pathAddress(UsageReceiving, 0)
	deriver.On("DeriveAddress", UsageReceiving, uint32(0)).Return(addr, nil)
	deriver.On("DeriveAddress", UsageChange, uint32(0)).Return(addr, nil)

	inv, err := NewInventory(Config{GapLimit: 1, Deriver: deriver})
	require.NoError(t, err)

	_, err = inv.Generate(UsageReceiving, 1)
	require.NoError(t, err)

	_, err = inv.Generate(UsageChange, 1)
	require.True(t, IsError(err, ErrEntryDuplicated))
	require.Empty(t, inv.Entries(UsageChange))

	deriver.AssertExpectations(t)
}

// TestUnknownUsage checks that only receiving and change are accepted.
func TestUnknownUsage(t *testing.T) {
	t.Parallel()

	inv, _ := newTestInventory(t, 1)

	_, err := inv.SelectNext(Usage(7))
	require.True(t, IsError(err, ErrUnknownUsage))

	_, err = inv.Generate(Usage(7), 1)
	require.True(t, IsError(err, ErrUnknownUsage))

	require.Nil(t, inv.Entries(Usage(7)))
	require.Zero(t, inv.UnusedTail(Usage(7)))
}

// TestBalanceCache checks cache writes, expiry and the cached total.
func TestBalanceCache(t *testing.T) {
	t.Parallel()

	inv, testClock := newTestInventory(t, 2)

	_, err := inv.Generate(UsageReceiving, 2)
	require.NoError(t, err)

	first := pathAddress(UsageReceiving, 0)
	second := pathAddress(UsageReceiving, 1)

	// No cache yet.
	_, err = inv.CachedBalance(first)
	require.True(t, IsError(err, ErrCacheInvalid))
	require.Zero(t, inv.TotalCachedBalance())

	_, err = inv.UpdateCache(first, 1000)
	require.NoError(t, err)

	testClock.SetTime(testTime.Add(30 * time.Second))
	_, err = inv.UpdateCache(second, 500)
	require.NoError(t, err)

	balance, err := inv.CachedBalance(first)
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(1000), balance)
	require.Equal(t, btcutil.Amount(1500), inv.TotalCachedBalance())

	// After a minute the first cache expires and contributes nothing.
	testClock.SetTime(testTime.Add(time.Minute))
	_, err = inv.CachedBalance(first)
	require.True(t, IsError(err, ErrCacheInvalid))
	require.Equal(t, btcutil.Amount(500), inv.TotalCachedBalance())

	require.NoError(t, inv.InvalidateCache(second))
	require.Zero(t, inv.TotalCachedBalance())

	// Writing the cache of an unknown address fails with both codes.
	_, err = inv.UpdateCache(pathAddress(UsageChange, 0), 1)
	require.True(t, IsError(err, ErrCacheUpdateFailed))
	require.True(t, IsError(err, ErrAddressNotFound))

	err = inv.InvalidateCache(pathAddress(UsageChange, 0))
	require.True(t, IsError(err, ErrCacheUpdateFailed))
}

// TestRestore checks that restoring re-derives every path up to the highest
// stored index and applies flags and caches.
func TestRestore(t *testing.T) {
	t.Parallel()

	src, _ := newTestInventory(t, 2)

	_, err := src.Generate(UsageReceiving, 5)
	require.NoError(t, err)
	_, err = src.Mark(pathAddress(UsageReceiving, 3), true)
	require.NoError(t, err)
	_, err = src.UpdateCache(pathAddress(UsageReceiving, 1), 42)
	require.NoError(t, err)
	_, err = src.SelectNext(UsageChange)
	require.NoError(t, err)

	dst, _ := newTestInventory(t, 2)
	require.NoError(t, dst.Restore(src.States()))

	for _, usage := range Usages {
		require.Equal(t, src.Entries(usage), dst.Entries(usage))
	}

	balance, err := dst.CachedBalance(pathAddress(UsageReceiving, 1))
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(42), balance)
}

// TestRestoreSparse checks that restoring only used entries still fills the
// paths below them and then tops up the gap.
func TestRestoreSparse(t *testing.T) {
	t.Parallel()

	inv, _ := newTestInventory(t, 2)

	err := inv.Restore([]EntryState{{
		Path: DerivationPath{Usage: UsageChange, Index: 4},
		Used: true,
	}})
	require.NoError(t, err)

	require.Len(t, inv.Entries(UsageChange), 7)
	require.Equal(t, uint32(2), inv.UnusedTail(UsageChange))
	require.Len(t, inv.Entries(UsageReceiving), 2)
	require.Equal(t, uint32(6), inv.HighestIndex(UsageChange).UnwrapOr(0))
}

// TestRestoreFailures checks the validation performed by Restore.
func TestRestoreFailures(t *testing.T) {
	t.Parallel()

	inv, _ := newTestInventory(t, 2)

	path := DerivationPath{Usage: UsageReceiving, Index: 1}
	err := inv.Restore([]EntryState{{Path: path}, {Path: path}})
	require.True(t, IsError(err, ErrAddressDuplicated))

	err = inv.Restore([]EntryState{{
		Path: DerivationPath{Usage: UsageReceiving, Index: MaxIndex + 1},
	}})
	require.True(t, IsError(err, ErrIndexOutOfBounds))

	// Failed restores leave the inventory untouched.
	require.Empty(t, inv.Entries(UsageReceiving))
}

// TestRestoreReplaces checks that restoring over a populated inventory
// replaces its entries and publishes the restored ones.
func TestRestoreReplaces(t *testing.T) {
	t.Parallel()

	inv, _ := newTestInventory(t, 2)
	_, err := inv.Generate(UsageReceiving, 6)
	require.NoError(t, err)

	sub := inv.Subscribe()
	defer sub.Cancel()

	err = inv.Restore([]EntryState{{
		Path: DerivationPath{Usage: UsageReceiving, Index: 0},
		Used: true,
	}})
	require.NoError(t, err)

	entries := inv.Entries(UsageReceiving)
	require.Len(t, entries, 3)
	require.True(t, entries[0].Used)

	_, err = inv.Lookup(pathAddress(UsageReceiving, 5))
	require.True(t, IsError(err, ErrAddressNotFound))

	// Three receiving and two change entries are published.
	for j := 0; j < 5; j++ {
		select {
		case update := <-sub.Updates():
			_, ok := update.(Entry)
			require.True(t, ok)

		case <-time.After(time.Second):
			t.Fatalf("restored entry %d not delivered", j)
		}
	}
}

// TestGapLimitProperty checks that the unused tail never drops below the gap
// limit after any mark or selection.
func TestGapLimitProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		gap := rapid.Uint32Range(1, 5).Draw(rt, "gap")

		inv, err := NewInventory(Config{
			GapLimit: gap,
			Deriver:  seqDeriver{},
		})
		require.NoError(rt, err)

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for s := 0; s < steps; s++ {
			usage := Usages[rapid.IntRange(0, 1).Draw(rt, "usage")]

			if rapid.Bool().Draw(rt, "select") {
				_, err := inv.SelectNext(usage)
				require.NoError(rt, err)
				require.GreaterOrEqual(rt, inv.UnusedTail(usage),
					gap)

				continue
			}

			entries := inv.Entries(usage)
			if len(entries) == 0 {
				continue
			}

			idx := rapid.IntRange(0, len(entries)-1).Draw(rt, "idx")
			_, err := inv.Mark(entries[idx].Address, true)
			require.NoError(rt, err)
			require.GreaterOrEqual(rt, inv.UnusedTail(usage), gap)
		}
	})
}
