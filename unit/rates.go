// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package unit provides fee rate and transaction size types for a chain that
// measures transactions in plain serialized bytes.
package unit

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

const (
	// DefaultRelayFeePerKByte is the minimum relay fee most nodes accept,
	// 1 sat/byte.
	DefaultRelayFeePerKByte SatPerKByte = 1000
)

// Bytes is a serialized transaction size in bytes.
type Bytes uint64

// String returns a human-readable string of the size.
func (b Bytes) String() string {
	return fmt.Sprintf("%d bytes", uint64(b))
}

// SatPerByte represents a fee rate in sat/byte.
type SatPerByte btcutil.Amount

// NewSatPerByte creates a new fee rate in sat/byte.
func NewSatPerByte(fee btcutil.Amount, size Bytes) SatPerByte {
	if size == 0 {
		return 0
	}
	return SatPerByte(fee.MulF64(1 / float64(size)))
}

// FeePerKByte converts the current fee rate from sat/byte to sat/kB.
func (s SatPerByte) FeePerKByte() SatPerKByte {
	return SatPerKByte(s * 1000)
}

// FeeForSize calculates the fee resulting from this fee rate and the given
// size.
func (s SatPerByte) FeeForSize(size Bytes) btcutil.Amount {
	return btcutil.Amount(s) * btcutil.Amount(size)
}

// String returns a human-readable string of the fee rate.
func (s SatPerByte) String() string {
	return fmt.Sprintf("%v sat/byte", int64(s))
}

// SatPerKByte represents a fee rate in sat/kB.
type SatPerKByte btcutil.Amount

// NewSatPerKByte creates a new fee rate in sat/kB.
func NewSatPerKByte(fee btcutil.Amount, size Bytes) SatPerKByte {
	if size == 0 {
		return 0
	}
	return SatPerKByte(fee.MulF64(1000 / float64(size)))
}

// FeeForSize calculates the fee resulting from this fee rate and the given
// size in bytes. The result is rounded down.
func (s SatPerKByte) FeeForSize(size Bytes) btcutil.Amount {
	return btcutil.Amount(s) * btcutil.Amount(size) / 1000
}

// FeeForSizeRoundUp calculates the fee resulting from this fee rate and the
// given size, rounding up to the nearest satoshi.
func (s SatPerKByte) FeeForSizeRoundUp(size Bytes) btcutil.Amount {
	return (btcutil.Amount(s)*btcutil.Amount(size) + 999) / 1000
}

// FeePerByte converts the current fee rate from sat/kB to sat/byte.
func (s SatPerKByte) FeePerByte() SatPerByte {
	return SatPerByte(s / 1000)
}

// String returns a human-readable string of the fee rate.
func (s SatPerKByte) String() string {
	return fmt.Sprintf("%v sat/kB", int64(s))
}
