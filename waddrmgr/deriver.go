// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddrmgr

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

const (
	// purposeBIP0044 is the BIP0044 purpose used for legacy P2PKH
	// accounts.
	purposeBIP0044 = 44

	// CoinTypeBitcoinCash is the SLIP-0044 coin type registered for
	// Bitcoin Cash.
	CoinTypeBitcoinCash = 145

	// CoinTypeTestnet is the SLIP-0044 coin type shared by all test
	// networks.
	CoinTypeTestnet = 1

	// MaxIndex is the largest non-hardened child index.
	MaxIndex = hdkeychain.HardenedKeyStart - 1
)

// AddressDeriver derives the address for a derivation path. Implementations
// must be deterministic and must never return the same address for two
// different paths.
type AddressDeriver interface {
	// DeriveAddress returns the address at the given index of the usage
	// branch.
	DeriveAddress(usage Usage, index uint32) (btcutil.Address, error)
}

// PrivKeyDeriver derives the private key for a derivation path.
type PrivKeyDeriver interface {
	// DerivePrivKey returns the private key at the given index of the
	// usage branch.
	DerivePrivKey(usage Usage, index uint32) (*btcec.PrivateKey, error)
}

// CoinTypeForNet returns the coin type an account on the given network is
// derived under.
func CoinTypeForNet(params *chaincfg.Params) uint32 {
	if params.Net == wire.MainNet {
		return CoinTypeBitcoinCash
	}

	return CoinTypeTestnet
}

// HDDeriver derives P2PKH addresses from a BIP0044 account key at
// m/44'/coin'/account'. It holds either the extended private or the
// extended public account key. In the latter case it is watch-only.
type HDDeriver struct {
	params   *chaincfg.Params
	private  bool
	branches [numUsages]*hdkeychain.ExtendedKey
}

// A compile-time assertion to ensure HDDeriver implements both deriver
// interfaces.
var (
	_ AddressDeriver = (*HDDeriver)(nil)
	_ PrivKeyDeriver = (*HDDeriver)(nil)
)

// NewHDDeriver creates a deriver from an account-level extended key.
func NewHDDeriver(accountKey *hdkeychain.ExtendedKey,
	params *chaincfg.Params) (*HDDeriver, error) {

	if !accountKey.IsForNet(params) {
		str := fmt.Sprintf("account key is not for network %s",
			params.Name)
		return nil, managerError(ErrInvalidConfig, str, nil)
	}

	d := &HDDeriver{
		params:  params,
		private: accountKey.IsPrivate(),
	}

	for _, usage := range Usages {
		branch, err := accountKey.Derive(uint32(usage))
		if err != nil {
			str := fmt.Sprintf("failed to derive %v branch", usage)
			return nil, managerError(ErrDerivation, str, err)
		}

		d.branches[usage] = branch
	}

	return d, nil
}

// NewHDDeriverFromString creates a deriver from a serialized account-level
// extended key, such as an xpub.
func NewHDDeriverFromString(key string,
	params *chaincfg.Params) (*HDDeriver, error) {

	accountKey, err := hdkeychain.NewKeyFromString(key)
	if err != nil {
		return nil, managerError(ErrInvalidConfig,
			"failed to parse account key", err)
	}

	return NewHDDeriver(accountKey, params)
}

// NewHDDeriverFromSeed derives the account key m/44'/coin'/account' from
// the given seed and creates a deriver for it.
func NewHDDeriverFromSeed(seed []byte, account uint32,
	params *chaincfg.Params) (*HDDeriver, error) {

	master, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, managerError(ErrDerivation,
			"failed to create master key", err)
	}

	path := []uint32{
		purposeBIP0044 + hdkeychain.HardenedKeyStart,
		CoinTypeForNet(params) + hdkeychain.HardenedKeyStart,
		account + hdkeychain.HardenedKeyStart,
	}

	accountKey := master
	for _, child := range path {
		accountKey, err = accountKey.Derive(child)
		if err != nil {
			return nil, managerError(ErrDerivation,
				"failed to derive account key", err)
		}
	}

	return NewHDDeriver(accountKey, params)
}

// childKey derives the child key at the given path.
func (d *HDDeriver) childKey(usage Usage,
	index uint32) (*hdkeychain.ExtendedKey, error) {

	if err := usage.validate(); err != nil {
		return nil, err
	}

	if index > MaxIndex {
		str := fmt.Sprintf("index %d is hardened", index)
		return nil, managerError(ErrIndexOutOfBounds, str, nil)
	}

	// hdkeychain.ErrInvalidChild is not skipped here. The inventory
	// requires dense indexes, so the caller sees the failure.
	child, err := d.branches[usage].Derive(index)
	if err != nil {
		str := fmt.Sprintf("failed to derive child %d/%d", usage, index)
		return nil, managerError(ErrDerivation, str, err)
	}

	return child, nil
}

// DeriveAddress returns the P2PKH address at the given path.
func (d *HDDeriver) DeriveAddress(usage Usage,
	index uint32) (btcutil.Address, error) {

	child, err := d.childKey(usage, index)
	if err != nil {
		return nil, err
	}

	pubKey, err := child.ECPubKey()
	if err != nil {
		return nil, managerError(ErrDerivation, "invalid public key",
			err)
	}

	pkHash := btcutil.Hash160(pubKey.SerializeCompressed())

	return btcutil.NewAddressPubKeyHash(pkHash, d.params)
}

// DerivePrivKey returns the private key at the given path. It fails with
// ErrWatchOnly if the deriver was built from a public key.
func (d *HDDeriver) DerivePrivKey(usage Usage,
	index uint32) (*btcec.PrivateKey, error) {

	if !d.private {
		return nil, managerError(ErrWatchOnly,
			"deriver holds no private key", nil)
	}

	child, err := d.childKey(usage, index)
	if err != nil {
		return nil, err
	}

	return child.ECPrivKey()
}
