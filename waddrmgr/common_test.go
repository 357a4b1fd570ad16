// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddrmgr

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	// errDerive is a mock error returned by the mocked deriver.
	errDerive = errors.New("derive failed")

	// chainParams are the chain parameters used throughout the tests.
	chainParams = chaincfg.RegressionNetParams

	// testTime is the starting time of the test clock.
	testTime = time.Unix(1700000000, 0)
)

// seqDeriver derives distinct fake P2PKH addresses from the path without
// touching any key material.
type seqDeriver struct{}

// DeriveAddress returns an address whose hash commits to the path.
func (seqDeriver) DeriveAddress(usage Usage,
	index uint32) (btcutil.Address, error) {

	return pathAddress(usage, index), nil
}

// pathAddress returns the deterministic fake address for a path.
func pathAddress(usage Usage, index uint32) btcutil.Address {
	var buf [5]byte
	buf[0] = byte(usage)
	binary.BigEndian.PutUint32(buf[1:], index)

	hash := sha256.Sum256(buf[:])
	addr, err := btcutil.NewAddressPubKeyHash(hash[:20], &chainParams)
	if err != nil {
		panic(err)
	}

	return addr
}

// mockDeriver is a mock implementation of the AddressDeriver interface.
type mockDeriver struct {
	mock.Mock
}

// DeriveAddress implements AddressDeriver.
func (m *mockDeriver) DeriveAddress(usage Usage,
	index uint32) (btcutil.Address, error) {

	args := m.Called(usage, index)
	addr, _ := args.Get(0).(btcutil.Address)

	return addr, args.Error(1)
}

// newTestInventory creates an inventory backed by the sequential deriver and
// a test clock.
func newTestInventory(t *testing.T, gap uint32) (*Inventory,
	*clock.TestClock) {

	t.Helper()

	testClock := clock.NewTestClock(testTime)
	inv, err := NewInventory(Config{
		GapLimit:      gap,
		Deriver:       seqDeriver{},
		CacheValidity: time.Minute,
		Clock:         testClock,
	})
	require.NoError(t, err)

	t.Cleanup(inv.Stop)

	return inv, testClock
}
