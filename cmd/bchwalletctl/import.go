// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/btcsuite/bchwallet/wallet"
	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// jsonToken is the token prefix of an imported output.
type jsonToken struct {
	Category   string `json:"category"`
	Amount     uint64 `json:"amount"`
	Capability string `json:"capability,omitempty"`
	Commitment string `json:"commitment,omitempty"`
}

// jsonUtxo is an unspent output as listed by an indexing server.
type jsonUtxo struct {
	TxID    string     `json:"txid"`
	Vout    uint32     `json:"vout"`
	Amount  int64      `json:"amount"`
	Address string     `json:"address"`
	Token   *jsonToken `json:"token,omitempty"`
}

// parseCapability returns the NFT capability with the given name.
func parseCapability(name string) (wtxmgr.NFTCapability, error) {
	for _, c := range []wtxmgr.NFTCapability{
		wtxmgr.NFTCapabilityNone,
		wtxmgr.NFTCapabilityMutable,
		wtxmgr.NFTCapabilityMinting,
	} {
		if c.String() == name {
			return c, nil
		}
	}

	return 0, fmt.Errorf("unknown NFT capability %q", name)
}

// tokenData converts the token of an imported output.
func (t *jsonToken) tokenData() (*wtxmgr.TokenData, error) {
	category, err := chainhash.NewHashFromStr(t.Category)
	if err != nil {
		return nil, fmt.Errorf("invalid token category: %w", err)
	}

	token := &wtxmgr.TokenData{Category: *category, Amount: t.Amount}
	if t.Capability == "" {
		return token, nil
	}

	capability, err := parseCapability(t.Capability)
	if err != nil {
		return nil, err
	}

	commitment, err := hex.DecodeString(t.Commitment)
	if err != nil {
		return nil, fmt.Errorf("invalid NFT commitment: %w", err)
	}

	token.NFT = &wtxmgr.NonFungibleToken{
		Capability: capability,
		Commitment: commitment,
	}

	return token, nil
}

// utxo converts an imported output, looking up the locking script of its
// address in the account.
func (u *jsonUtxo) utxo(acct *wallet.Account,
	params *chaincfg.Params) (wtxmgr.Utxo, error) {

	hash, err := chainhash.NewHashFromStr(u.TxID)
	if err != nil {
		return wtxmgr.Utxo{}, fmt.Errorf("invalid txid: %w", err)
	}

	addr, err := btcutil.DecodeAddress(u.Address, params)
	if err != nil {
		return wtxmgr.Utxo{}, fmt.Errorf("invalid address: %w", err)
	}

	entry, err := acct.LookupEntry(addr)
	if err != nil {
		return wtxmgr.Utxo{}, err
	}

	utxo := wtxmgr.Utxo{
		OutPoint: *wire.NewOutPoint(hash, u.Vout),
		Amount:   btcutil.Amount(u.Amount),
		PkScript: entry.PkScript,
	}

	if u.Token != nil {
		utxo.Token, err = u.Token.tokenData()
		if err != nil {
			return wtxmgr.Utxo{}, err
		}
	}

	return utxo, nil
}

// importUtxos adds the outputs listed in the JSON file at path to the
// account.
func importUtxos(acct *wallet.Account, params *chaincfg.Params,
	path string) (int, error) {

	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var listed []jsonUtxo
	if err := json.Unmarshal(raw, &listed); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	utxos := make([]wtxmgr.Utxo, 0, len(listed))
	for i := range listed {
		utxo, err := listed[i].utxo(acct, params)
		if err != nil {
			return 0, fmt.Errorf("output %d of %s: %w", i, path, err)
		}

		utxos = append(utxos, utxo)
	}

	if err := acct.AddUtxos(utxos...); err != nil {
		return 0, err
	}

	return len(utxos), nil
}
