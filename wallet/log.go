// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"github.com/btcsuite/bchwallet/waddrmgr"
	"github.com/btcsuite/bchwallet/wallet/cashtoken"
	"github.com/btcsuite/bchwallet/wallet/internal/db"
	"github.com/btcsuite/bchwallet/wallet/internal/db/kvdb"
	"github.com/btcsuite/bchwallet/wallet/txauthor"
	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btclog"
)

// log is a logger that is initialized with no output filters. This means
// the package will not perform any logging by default until the caller
// requests it.
var log btclog.Logger

// The default amount of logging is none.
func init() {
	DisableLog()
}

// DisableLog disables all library log output. Logging output is disabled
// by default until UseLogger is called.
func DisableLog() {
	UseLogger(btclog.Disabled)
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// UseLoggers sets the loggers of the wallet package and of every package
// the wallet owns. Storage backends log with the wallet logger.
func UseLoggers(walletLog, addrLog, txLog, authorLog,
	tokenLog btclog.Logger) {

	UseLogger(walletLog)
	waddrmgr.UseLogger(addrLog)
	wtxmgr.UseLogger(txLog)
	txauthor.UseLogger(authorLog)
	cashtoken.UseLogger(tokenLog)
	db.UseLogger(walletLog)
	kvdb.UseLogger(walletLog)
}
