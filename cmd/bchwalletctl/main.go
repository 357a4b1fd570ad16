// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// bchwalletctl inspects the persisted state of a watch-only account: its
// derived addresses, its unspent outputs and token holdings, and the coin
// selection a payment would get.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/bchwallet/waddrmgr"
	"github.com/btcsuite/bchwallet/wallet"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/jessevdk/go-flags"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}

		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run loads the account, performs the requested actions and stores the
// account again if it changed.
func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	err = initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	if err != nil {
		return err
	}
	defer closeLogRotator()

	if err := setLogLevels(cfg.DebugLevel); err != nil {
		return err
	}

	deriver, err := waddrmgr.NewHDDeriverFromString(cfg.Xpub, cfg.params)
	if err != nil {
		return err
	}

	acctCfg := wallet.DefaultConfig(deriver)
	acctCfg.Name = cfg.Account
	acctCfg.ChainParams = cfg.params
	acctCfg.GapLimit = cfg.GapLimit

	acct, err := wallet.NewAccount(acctCfg)
	if err != nil {
		return err
	}
	defer acct.Stop()

	err = os.MkdirAll(filepath.Dir(cfg.DBPath), logDirPerm)
	if err != nil {
		return err
	}

	store, err := wallet.OpenStore(cfg.DBBackend, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Errorf("Unable to close snapshot store: %v", err)
		}
	}()

	ctx := context.Background()
	err = acct.Load(ctx, store)
	switch {
	case errors.Is(err, wallet.ErrSnapshotNotFound):
		log.Infof("No snapshot for account %q, starting fresh",
			cfg.Account)

	case err != nil:
		return err
	}

	if cfg.Import != "" {
		n, err := importUtxos(acct, cfg.params, cfg.Import)
		if err != nil {
			return err
		}

		log.Infof("Imported %d outputs from %s", n, cfg.Import)
	}

	if cfg.Addresses {
		printAddresses(acct)
	}

	if cfg.Utxos {
		printUtxos(acct)
	}

	if cfg.Tokens {
		printTokens(acct)
	}

	if cfg.Select > 0 {
		if err := dryRunSelect(acct, cfg); err != nil {
			return err
		}
	}

	// Deriving addresses or importing outputs changes the account, so it
	// is always written back.
	return acct.Save(ctx, store)
}

// printAddresses lists every entry of both branches.
func printAddresses(acct *wallet.Account) {
	for _, usage := range waddrmgr.Usages {
		fmt.Printf("%v addresses:\n", usage)
		for _, entry := range acct.Entries(usage) {
			fmt.Printf("  %-6v %v used=%v\n", entry.Path,
				entry.Address, entry.Used)
		}
	}
}

// printUtxos lists the unreserved outputs and the balance.
func printUtxos(acct *wallet.Account) {
	for _, u := range acct.ListUnspent() {
		token := ""
		if u.HasToken() {
			token = " token=" + u.Token.String()
		}

		fmt.Printf("%v %v%s\n", u.OutPoint, u.Amount, token)
	}

	bal := acct.Balance()
	fmt.Printf("available=%v reserved=%v\n", bal.Available, bal.Reserved)
}

// printTokens lists the token holdings per category.
func printTokens(acct *wallet.Account) {
	inv := acct.TokenInventory()
	for _, category := range inv.Categories() {
		bal := inv.Balance(category)
		fmt.Printf("%v fungible=%d nfts=%d\n", category, bal.Fungible,
			bal.NFTCount())
	}
}

// dryRunSelect runs coin selection for a payment without reserving
// anything and dumps the result.
func dryRunSelect(acct *wallet.Account, cfg *config) error {
	strategy, err := cfg.strategy()
	if err != nil {
		return err
	}

	var payTo btcutil.Address
	if cfg.PayTo != "" {
		payTo, err = btcutil.DecodeAddress(cfg.PayTo, cfg.params)
		if err != nil {
			return fmt.Errorf("invalid --payto address: %w", err)
		}
	} else {
		entry, err := acct.NextAddress(waddrmgr.UsageReceiving)
		if err != nil {
			return err
		}
		payTo = entry.Address
	}

	pkScript, err := txscript.PayToAddrScript(payTo)
	if err != nil {
		return err
	}

	sel, err := acct.SelectCoins(&wallet.SelectRequest{
		Outputs:  []*wire.TxOut{wire.NewTxOut(cfg.Select, pkScript)},
		FeeRate:  cfg.feeRate(),
		Strategy: strategy,
	})
	if err != nil {
		return err
	}

	fmt.Printf("strategy=%s inputs=%d total=%v fee=%v change=%v\n",
		strategy.Name(), len(sel.Inputs), sel.Total, sel.Fee,
		sel.Selection.Change)
	spew.Dump(sel.OutPoints())
	if sel.ChangeOutput != nil {
		fmt.Printf("change address %v\n", sel.Change.Address)
	}

	return nil
}
