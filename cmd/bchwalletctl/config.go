// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/btcsuite/bchwallet/unit"
	"github.com/btcsuite/bchwallet/waddrmgr"
	"github.com/btcsuite/bchwallet/wallet"
	"github.com/btcsuite/bchwallet/wallet/txauthor"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/jessevdk/go-flags"
)

const (
	defaultDBFilename  = "bchwallet.db"
	defaultLogFilename = "bchwalletctl.log"
	defaultLogLevel    = "info"
	defaultStrategy    = "largest"

	// maxFeeRate guards against fee rates given in the wrong unit.
	maxFeeRate = btcutil.Amount(1e6)
)

var (
	defaultAppDir = btcutil.AppDataDir("bchwallet", false)
	defaultDBPath = filepath.Join(defaultAppDir, defaultDBFilename)
	defaultLogDir = filepath.Join(defaultAppDir, "logs")

	errMissingXpub = errors.New("an account xpub is required (--xpub)")
)

// config holds the command line options of bchwalletctl.
type config struct {
	Xpub       string `long:"xpub" description:"Extended public key of the account (m/44'/coin'/account')"`
	Network    string `long:"network" description:"Network the account lives on" choice:"mainnet" choice:"testnet3" choice:"regtest" choice:"simnet"`
	Account    string `long:"account" description:"Name the account is stored under"`
	GapLimit   uint32 `long:"gaplimit" description:"Number of trailing unused addresses kept per branch"`
	DBBackend  string `long:"dbbackend" description:"Snapshot store backend" choice:"kvdb" choice:"sqlite"`
	DBPath     string `long:"dbpath" description:"Path of the snapshot database"`
	DebugLevel string `long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical, off}"`
	LogDir     string `long:"logdir" description:"Directory to write the log file to"`

	Addresses bool   `long:"addresses" description:"List the derived addresses"`
	Utxos     bool   `long:"utxos" description:"List the unspent outputs and the balance"`
	Tokens    bool   `long:"tokens" description:"List the CashToken holdings"`
	Import    string `long:"import" description:"Import unspent outputs from a JSON file"`
	Select    int64  `long:"select" description:"Run a dry coin selection paying this many satoshis"`
	PayTo     string `long:"payto" description:"Recipient address of --select, the next receiving address by default"`
	Strategy  string `long:"strategy" description:"Coin selection strategy" choice:"largest" choice:"bnb" choice:"sweep"`
	FeeRate   int64  `long:"feerate" description:"Fee rate in satoshis per 1000 bytes"`

	params *chaincfg.Params
}

// defaultConfig returns the configuration used for unset options.
func defaultConfig() config {
	return config{
		Network:    "mainnet",
		Account:    wallet.DefaultAccountName,
		GapLimit:   waddrmgr.DefaultGapLimit,
		DBBackend:  wallet.BackendKvdb,
		DBPath:     defaultDBPath,
		DebugLevel: defaultLogLevel,
		LogDir:     defaultLogDir,
		Strategy:   defaultStrategy,
		FeeRate:    int64(txrules.DefaultRelayFeePerKb),
	}
}

// netParams returns the chain parameters of the named network.
func netParams(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(name) {
	case "mainnet":
		return &chaincfg.MainNetParams, nil

	case "testnet3", "testnet":
		return &chaincfg.TestNet3Params, nil

	case "regtest":
		return &chaincfg.RegressionNetParams, nil

	case "simnet":
		return &chaincfg.SimNetParams, nil

	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}

// loadConfig parses the command line on top of the defaults and validates
// the result.
func loadConfig(args []string) (*config, error) {
	cfg := defaultConfig()

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.Xpub == "" {
		return nil, errMissingXpub
	}

	params, err := netParams(cfg.Network)
	if err != nil {
		return nil, err
	}
	cfg.params = params

	if cfg.GapLimit == 0 {
		return nil, errors.New("gap limit must be positive")
	}

	feeRate := btcutil.Amount(cfg.FeeRate)
	if feeRate < 0 || feeRate > maxFeeRate {
		return nil, fmt.Errorf("fee rate %v/kB out of range [0, %v]",
			feeRate, maxFeeRate)
	}

	if cfg.Select < 0 {
		return nil, fmt.Errorf("negative selection amount %d",
			cfg.Select)
	}

	cfg.DBPath = cleanAndExpandPath(cfg.DBPath)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	return &cfg, nil
}

// feeRate returns the configured fee rate.
func (c *config) feeRate() unit.SatPerKByte {
	return unit.SatPerKByte(c.FeeRate)
}

// strategy returns the configured coin selection strategy.
func (c *config) strategy() (txauthor.SelectionStrategy, error) {
	return txauthor.StrategyByName(c.Strategy)
}

// cleanAndExpandPath expands a leading ~ to the home directory and cleans
// the path.
func cleanAndExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home := filepath.Dir(defaultAppDir)
		path = strings.Replace(path, "~", home, 1)
	}

	return filepath.Clean(path)
}
