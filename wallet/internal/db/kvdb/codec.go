// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package kvdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/btcsuite/bchwallet/waddrmgr"
	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ccoveille/go-safecast"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/tlv"
)

const (
	typeEntryUsed        tlv.Type = 0
	typeEntryBalance     tlv.Type = 1
	typeEntryLastUpdated tlv.Type = 2
	typeEntryValidFor    tlv.Type = 3

	typeUtxoAmount        tlv.Type = 0
	typeUtxoPkScript      tlv.Type = 1
	typeUtxoCategory      tlv.Type = 2
	typeUtxoTokenAmount   tlv.Type = 3
	typeUtxoNFTCapability tlv.Type = 4
	typeUtxoNFTCommitment tlv.Type = 5

	typeTxHeight       tlv.Type = 0
	typeTxFee          tlv.Type = 1
	typeTxVerification tlv.Type = 2
	typeTxMerkleProof  tlv.Type = 3
	typeTxScriptHashes tlv.Type = 4
)

const (
	// entryKeyLen is the length of an entry key: the usage byte and the
	// big endian child index.
	entryKeyLen = 1 + 4

	// outPointKeyLen is the length of an utxo key: the tx hash and the
	// big endian output index.
	outPointKeyLen = chainhash.HashSize + 4
)

var (
	// errMalformedKey is returned when a bucket key has the wrong length.
	errMalformedKey = errors.New("malformed key")

	// errMissingRecord is returned when a mandatory TLV record is absent.
	errMissingRecord = errors.New("missing record")
)

// parsed returns true if the record of the given type was decoded.
func parsed(types tlv.TypeMap, typ tlv.Type) bool {
	t, ok := types[typ]
	return ok && t == nil
}

// encodeStream serializes the records as a TLV stream.
func encodeStream(records ...tlv.Record) ([]byte, error) {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// decodeStream parses the value into the records and reports which types
// were present.
func decodeStream(v []byte, records ...tlv.Record) (tlv.TypeMap, error) {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	return stream.DecodeWithParsedTypes(bytes.NewReader(v))
}

// entryKey returns the bucket key of the derivation path. Keys sort by
// usage and then by index.
func entryKey(p waddrmgr.DerivationPath) []byte {
	var k [entryKeyLen]byte
	k[0] = byte(p.Usage)
	binary.BigEndian.PutUint32(k[1:], p.Index)

	return k[:]
}

// encodeEntry serializes the mutable state of an entry.
func encodeEntry(e *waddrmgr.EntryState) ([]byte, error) {
	var used uint8
	if e.Used {
		used = 1
	}

	validFor, err := safecast.ToUint64(int64(e.Cache.ValidFor))
	if err != nil {
		return nil, fmt.Errorf("cache validity of %v: %w", e.Path, err)
	}

	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeEntryUsed, &used),
	}

	var (
		balance uint64
		updated uint64
	)
	if b, ok := optionValue(e.Cache.Balance); ok {
		balance, err = safecast.ToUint64(int64(b))
		if err != nil {
			return nil, fmt.Errorf("cached balance of %v: %w",
				e.Path, err)
		}

		records = append(records, tlv.MakePrimitiveRecord(
			typeEntryBalance, &balance,
		))
	}

	if at, ok := optionValue(e.Cache.LastUpdated); ok {
		updated, err = safecast.ToUint64(at.UnixNano())
		if err != nil {
			return nil, fmt.Errorf("cache time of %v: %w", e.Path,
				err)
		}

		records = append(records, tlv.MakePrimitiveRecord(
			typeEntryLastUpdated, &updated,
		))
	}

	records = append(records, tlv.MakePrimitiveRecord(
		typeEntryValidFor, &validFor,
	))

	return encodeStream(records...)
}

// decodeEntry parses an entry from its key and value.
func decodeEntry(k, v []byte) (waddrmgr.EntryState, error) {
	if len(k) != entryKeyLen {
		return waddrmgr.EntryState{}, fmt.Errorf("%w: entry key %x",
			errMalformedKey, k)
	}

	var (
		used                       uint8
		balance, updated, validFor uint64
	)
	types, err := decodeStream(v,
		tlv.MakePrimitiveRecord(typeEntryUsed, &used),
		tlv.MakePrimitiveRecord(typeEntryBalance, &balance),
		tlv.MakePrimitiveRecord(typeEntryLastUpdated, &updated),
		tlv.MakePrimitiveRecord(typeEntryValidFor, &validFor),
	)
	if err != nil {
		return waddrmgr.EntryState{}, err
	}

	e := waddrmgr.EntryState{
		Path: waddrmgr.DerivationPath{
			Usage: waddrmgr.Usage(k[0]),
			Index: binary.BigEndian.Uint32(k[1:]),
		},
		Used: used != 0,
	}

	d, err := safecast.ToInt64(validFor)
	if err != nil {
		return waddrmgr.EntryState{}, err
	}
	e.Cache.ValidFor = time.Duration(d)

	if parsed(types, typeEntryBalance) {
		b, err := safecast.ToInt64(balance)
		if err != nil {
			return waddrmgr.EntryState{}, err
		}
		e.Cache.Balance = fn.Some(btcutil.Amount(b))
	}

	if parsed(types, typeEntryLastUpdated) {
		at, err := safecast.ToInt64(updated)
		if err != nil {
			return waddrmgr.EntryState{}, err
		}
		e.Cache.LastUpdated = fn.Some(time.Unix(0, at))
	}

	return e, nil
}

// outPointKey returns the bucket key of the outpoint.
func outPointKey(op *wire.OutPoint) []byte {
	var k [outPointKeyLen]byte
	copy(k[:], op.Hash[:])
	binary.BigEndian.PutUint32(k[chainhash.HashSize:], op.Index)

	return k[:]
}

// encodeUtxo serializes an unspent output without its outpoint.
func encodeUtxo(u *wtxmgr.Utxo) ([]byte, error) {
	amount, err := safecast.ToUint64(int64(u.Amount))
	if err != nil {
		return nil, fmt.Errorf("amount of %v: %w", u.OutPoint, err)
	}

	script := u.PkScript
	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeUtxoAmount, &amount),
		tlv.MakePrimitiveRecord(typeUtxoPkScript, &script),
	}

	if u.Token != nil {
		category := [32]byte(u.Token.Category)
		tokenAmount := u.Token.Amount
		records = append(records,
			tlv.MakePrimitiveRecord(typeUtxoCategory, &category),
			tlv.MakePrimitiveRecord(
				typeUtxoTokenAmount, &tokenAmount,
			),
		)

		if nft := u.Token.NFT; nft != nil {
			capability := uint8(nft.Capability)
			commitment := nft.Commitment
			records = append(records,
				tlv.MakePrimitiveRecord(
					typeUtxoNFTCapability, &capability,
				),
				tlv.MakePrimitiveRecord(
					typeUtxoNFTCommitment, &commitment,
				),
			)
		}
	}

	return encodeStream(records...)
}

// decodeUtxo parses an unspent output from its key and value.
func decodeUtxo(k, v []byte) (wtxmgr.Utxo, error) {
	if len(k) != outPointKeyLen {
		return wtxmgr.Utxo{}, fmt.Errorf("%w: utxo key %x",
			errMalformedKey, k)
	}

	var (
		amount, tokenAmount uint64
		script, commitment  []byte
		category            [32]byte
		capability          uint8
	)
	types, err := decodeStream(v,
		tlv.MakePrimitiveRecord(typeUtxoAmount, &amount),
		tlv.MakePrimitiveRecord(typeUtxoPkScript, &script),
		tlv.MakePrimitiveRecord(typeUtxoCategory, &category),
		tlv.MakePrimitiveRecord(typeUtxoTokenAmount, &tokenAmount),
		tlv.MakePrimitiveRecord(typeUtxoNFTCapability, &capability),
		tlv.MakePrimitiveRecord(typeUtxoNFTCommitment, &commitment),
	)
	if err != nil {
		return wtxmgr.Utxo{}, err
	}

	if !parsed(types, typeUtxoAmount) || !parsed(types, typeUtxoPkScript) {
		return wtxmgr.Utxo{}, fmt.Errorf("%w: utxo %x", errMissingRecord,
			k)
	}

	value, err := safecast.ToInt64(amount)
	if err != nil {
		return wtxmgr.Utxo{}, err
	}

	var hash chainhash.Hash
	copy(hash[:], k[:chainhash.HashSize])

	u := wtxmgr.Utxo{
		OutPoint: wire.OutPoint{
			Hash:  hash,
			Index: binary.BigEndian.Uint32(k[chainhash.HashSize:]),
		},
		Amount:   btcutil.Amount(value),
		PkScript: script,
	}

	if parsed(types, typeUtxoCategory) {
		u.Token = &wtxmgr.TokenData{
			Category: chainhash.Hash(category),
			Amount:   tokenAmount,
		}

		if parsed(types, typeUtxoNFTCapability) {
			u.Token.NFT = &wtxmgr.NonFungibleToken{
				Capability: wtxmgr.NFTCapability(capability),
			}
			if len(commitment) > 0 {
				u.Token.NFT.Commitment = commitment
			}
		}
	}

	return u, nil
}

// encodeTx serializes a history record without its hash. The status fields
// are derived from the height on load and are not stored.
func encodeTx(r *wtxmgr.TxRecord) ([]byte, error) {
	// Heights are stored as their two's complement so unconfirmed
	// markers survive.
	height := uint32(r.Height)
	verification := uint8(r.Verification)
	hashes := r.ScriptHashes.ToSlice()
	sort.Strings(hashes)

	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeTxHeight, &height),
	}

	var fee uint64
	if f, ok := optionValue(r.Fee); ok {
		var err error
		fee, err = safecast.ToUint64(int64(f))
		if err != nil {
			return nil, fmt.Errorf("fee of %v: %w", r.Hash, err)
		}

		records = append(records, tlv.MakePrimitiveRecord(
			typeTxFee, &fee,
		))
	}

	records = append(records, tlv.MakePrimitiveRecord(
		typeTxVerification, &verification,
	))

	proof := r.MerkleProof
	if len(proof) > 0 {
		records = append(records, tlv.MakePrimitiveRecord(
			typeTxMerkleProof, &proof,
		))
	}

	records = append(records, scriptHashesRecord(&hashes))

	return encodeStream(records...)
}

// decodeTx parses a history record from its key and value.
func decodeTx(k, v []byte) (wtxmgr.TxRecord, error) {
	if len(k) != chainhash.HashSize {
		return wtxmgr.TxRecord{}, fmt.Errorf("%w: tx key %x",
			errMalformedKey, k)
	}

	var (
		height       uint32
		fee          uint64
		verification uint8
		proof        []byte
		hashes       []string
	)
	types, err := decodeStream(v,
		tlv.MakePrimitiveRecord(typeTxHeight, &height),
		tlv.MakePrimitiveRecord(typeTxFee, &fee),
		tlv.MakePrimitiveRecord(typeTxVerification, &verification),
		tlv.MakePrimitiveRecord(typeTxMerkleProof, &proof),
		scriptHashesRecord(&hashes),
	)
	if err != nil {
		return wtxmgr.TxRecord{}, err
	}

	var hash chainhash.Hash
	copy(hash[:], k)

	r := wtxmgr.TxRecord{
		Hash:         hash,
		Height:       int32(height),
		ScriptHashes: fn.NewSet(hashes...),
		Verification: wtxmgr.VerificationStatus(verification),
	}

	if parsed(types, typeTxFee) {
		f, err := safecast.ToInt64(fee)
		if err != nil {
			return wtxmgr.TxRecord{}, err
		}
		r.Fee = fn.Some(btcutil.Amount(f))
	}

	if parsed(types, typeTxMerkleProof) {
		r.MerkleProof = proof
	}

	return r, nil
}

// scriptHashesRecord is the record holding the fingerprint set of a history
// record. Each fingerprint is written as a varint length followed by its
// bytes.
func scriptHashesRecord(hashes *[]string) tlv.Record {
	return tlv.MakeDynamicRecord(
		typeTxScriptHashes, hashes, func() uint64 {
			return scriptHashesSize(hashes)
		}, scriptHashesEncoder, scriptHashesDecoder,
	)
}

// scriptHashesSize returns the encoded size of the fingerprint list.
func scriptHashesSize(hashes *[]string) uint64 {
	var size uint64
	for _, h := range *hashes {
		size += tlv.VarIntSize(uint64(len(h))) + uint64(len(h))
	}

	return size
}

// scriptHashesEncoder is a custom TLV encoder for a list of fingerprints.
func scriptHashesEncoder(w io.Writer, val interface{}, buf *[8]byte) error {
	v, ok := val.(*[]string)
	if !ok {
		return tlv.NewTypeForEncodingErr(val, "[]string")
	}

	for _, h := range *v {
		if err := tlv.WriteVarInt(w, uint64(len(h)), buf); err != nil {
			return err
		}

		if _, err := io.WriteString(w, h); err != nil {
			return err
		}
	}

	return nil
}

// scriptHashesDecoder is a custom TLV decoder for a list of fingerprints.
func scriptHashesDecoder(r io.Reader, val interface{}, buf *[8]byte,
	l uint64) error {

	v, ok := val.(*[]string)
	if !ok {
		return tlv.NewTypeForDecodingErr(val, "[]string", l, l)
	}

	limited := &io.LimitedReader{R: r, N: int64(l)}

	var hashes []string
	for {
		size, err := tlv.ReadVarInt(limited, buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if size > uint64(limited.N) {
			return fmt.Errorf("fingerprint length %d exceeds "+
				"record", size)
		}

		h := make([]byte, size)
		if _, err := io.ReadFull(limited, h); err != nil {
			return err
		}

		hashes = append(hashes, string(h))
	}

	*v = hashes

	return nil
}

// optionValue unpacks an option into a value and a presence flag.
func optionValue[T any](o fn.Option[T]) (T, bool) {
	var zero T
	return o.UnwrapOr(zero), o.IsSome()
}
