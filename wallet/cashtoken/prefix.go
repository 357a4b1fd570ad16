// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cashtoken

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

const (
	// PrefixToken marks the start of a token prefix in the locking
	// bytecode field of an output.
	PrefixToken = 0xef

	// Token prefix bitfield flags. The low nibble holds the NFT
	// capability.
	hasCommitmentLength = 0x40
	hasNFT              = 0x20
	hasAmount           = 0x10
)

// EncodePrefix serializes the token prefix that precedes the locking script
// of a token-bearing output. A nil token encodes to nothing.
func EncodePrefix(t *wtxmgr.TokenData) ([]byte, error) {
	if t == nil {
		return nil, nil
	}

	var bitfield byte
	if t.Amount > 0 {
		bitfield |= hasAmount
	}
	if t.NFT != nil {
		bitfield |= hasNFT | byte(t.NFT.Capability)
		if len(t.NFT.Commitment) > 0 {
			bitfield |= hasCommitmentLength
		}
	}

	if bitfield&(hasAmount|hasNFT) == 0 {
		return nil, fmt.Errorf("token prefix of category %v carries "+
			"no tokens", t.Category)
	}

	var buf bytes.Buffer
	buf.WriteByte(PrefixToken)
	buf.Write(t.Category[:])
	buf.WriteByte(bitfield)

	if bitfield&hasCommitmentLength != 0 {
		commitment := t.NFT.Commitment
		err := wire.WriteVarInt(&buf, 0, uint64(len(commitment)))
		if err != nil {
			return nil, err
		}
		buf.Write(commitment)
	}

	if bitfield&hasAmount != 0 {
		if err := wire.WriteVarInt(&buf, 0, t.Amount); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Recipient is an output of a transfer.
type Recipient struct {
	// PkScript is the locking script the output pays to.
	PkScript []byte

	// Value is the satoshi value of the output. Token outputs with a
	// zero value are raised to the dust limit when funded.
	Value btcutil.Amount

	// Token is the token prefix of the output, nil for a plain payment.
	Token *wtxmgr.TokenData
}

// TxOut returns the output with the token prefix placed in front of the
// locking script, which is how it is sized on the wire.
func (r *Recipient) TxOut() (*wire.TxOut, error) {
	prefix, err := EncodePrefix(r.Token)
	if err != nil {
		return nil, err
	}

	script := make([]byte, 0, len(prefix)+len(r.PkScript))
	script = append(script, prefix...)
	script = append(script, r.PkScript...)

	return wire.NewTxOut(int64(r.Value), script), nil
}
