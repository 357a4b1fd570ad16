// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"fmt"
	"time"

	"github.com/btcsuite/bchwallet/waddrmgr"
	"github.com/btcsuite/bchwallet/wallet/txauthor"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/clock"
)

// DefaultAccountName is the name snapshots are stored under when none is
// configured.
const DefaultAccountName = "default"

// Config holds the parameters of an Account.
type Config struct {
	// Name identifies the account in a snapshot store.
	Name string

	// ChainParams are the parameters of the network the account lives
	// on.
	ChainParams *chaincfg.Params

	// Deriver derives the addresses of the account.
	Deriver waddrmgr.AddressDeriver

	// GapLimit is the number of trailing unused addresses kept per
	// usage.
	GapLimit uint32

	// CacheValidity is how long a cached address balance is trusted.
	CacheValidity time.Duration

	// MaxBnBCandidates bounds the candidate set of branch-and-bound
	// selection. Larger sets fall back to largest-first.
	MaxBnBCandidates int

	// FeeEstimator computes the fee of candidate transactions.
	FeeEstimator txauthor.FeeEstimator

	// DustThreshold computes the dust limit of change outputs.
	DustThreshold txauthor.DustThreshold

	// Clock is the time source of the account.
	Clock clock.Clock
}

// DefaultConfig returns a configuration with every optional field set for
// the given deriver on mainnet.
func DefaultConfig(deriver waddrmgr.AddressDeriver) Config {
	cfg := Config{Deriver: deriver}
	cfg.applyDefaults()

	return cfg
}

// applyDefaults fills in every unset optional field.
func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = DefaultAccountName
	}

	if c.ChainParams == nil {
		c.ChainParams = &chaincfg.MainNetParams
	}

	if c.GapLimit == 0 {
		c.GapLimit = waddrmgr.DefaultGapLimit
	}

	if c.CacheValidity == 0 {
		c.CacheValidity = waddrmgr.DefaultCacheValidity
	}

	if c.MaxBnBCandidates == 0 {
		c.MaxBnBCandidates = txauthor.MaxBranchAndBoundCandidates
	}

	if c.FeeEstimator == nil {
		c.FeeEstimator = txauthor.SizeFeeEstimator{}
	}

	if c.DustThreshold == nil {
		c.DustThreshold = txauthor.RelayDustThreshold{}
	}

	if c.Clock == nil {
		c.Clock = clock.NewDefaultClock()
	}
}

// validate checks the mandatory fields.
func (c *Config) validate() error {
	if c.Deriver == nil {
		return ErrMissingDeriver
	}

	if c.CacheValidity < 0 {
		return fmt.Errorf("negative cache validity %v", c.CacheValidity)
	}

	if c.MaxBnBCandidates < 0 {
		return fmt.Errorf("negative branch-and-bound candidate cap %d",
			c.MaxBnBCandidates)
	}

	return nil
}
