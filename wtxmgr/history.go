// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wtxmgr

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// TxStatus is the confirmation status of a recorded transaction.
type TxStatus uint8

const (
	// TxStatusPending marks a transaction that is not yet in a block.
	TxStatusPending TxStatus = iota

	// TxStatusConfirmed marks a transaction mined at a known height.
	TxStatusConfirmed
)

// String returns the human-readable name of the status.
func (s TxStatus) String() string {
	switch s {
	case TxStatusPending:
		return "pending"
	case TxStatusConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("unknown status (%d)", uint8(s))
	}
}

// VerificationStatus is the outcome of checking a transaction's merkle proof
// against a block header.
type VerificationStatus uint8

const (
	// VerificationUnverified marks a record whose proof was not checked at
	// its current height.
	VerificationUnverified VerificationStatus = iota

	// VerificationVerified marks a record whose proof matched.
	VerificationVerified

	// VerificationFailed marks a record whose proof did not match.
	VerificationFailed
)

// String returns the human-readable name of the verification status.
func (v VerificationStatus) String() string {
	switch v {
	case VerificationUnverified:
		return "unverified"
	case VerificationVerified:
		return "verified"
	case VerificationFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown verification (%d)", uint8(v))
	}
}

// ScriptHash returns the fingerprint under which history of a locking script
// is tracked: the sha256 of the script in reversed byte order, hex encoded.
func ScriptHash(pkScript []byte) string {
	return chainhash.Hash(sha256.Sum256(pkScript)).String()
}

// HistoryItem is one entry of a refreshed history for a script hash.
type HistoryItem struct {
	// Hash is the transaction hash.
	Hash chainhash.Hash

	// Height is the block height, or a value <= 0 for unconfirmed
	// transactions.
	Height int32

	// Fee is the fee paid, when reported.
	Fee fn.Option[btcutil.Amount]
}

// TxRecord is a transaction relevant to one or more tracked scripts.
type TxRecord struct {
	// Hash identifies the record.
	Hash chainhash.Hash

	// Height is the block height, or a value <= 0 when unconfirmed or
	// unknown.
	Height int32

	// Fee is the fee paid, when known.
	Fee fn.Option[btcutil.Amount]

	// ScriptHashes are the fingerprints of the tracked scripts this
	// transaction touches. The record is dropped once this set is empty.
	ScriptHashes fn.Set[string]

	// Status is derived from Height.
	Status TxStatus

	// ConfirmationHeight is the height the transaction was confirmed at.
	ConfirmationHeight fn.Option[int32]

	// Verification is the merkle proof check status at the current
	// height.
	Verification VerificationStatus

	// MerkleProof is the raw proof, if one was fetched.
	MerkleProof []byte
}

// copyRecord returns a deep copy of the record.
func copyRecord(r *TxRecord) TxRecord {
	c := *r
	c.ScriptHashes = fn.NewSet(r.ScriptHashes.ToSlice()...)
	c.MerkleProof = append([]byte(nil), r.MerkleProof...)
	if len(r.MerkleProof) == 0 {
		c.MerkleProof = nil
	}

	return c
}

// applyHeight sets the height and derives the status fields from it. A
// height change invalidates any previous proof verification.
func (r *TxRecord) applyHeight(height int32) {
	if r.Height != height {
		r.Verification = VerificationUnverified
		r.MerkleProof = nil
	}

	r.Height = height
	if height > 0 {
		r.Status = TxStatusConfirmed
		r.ConfirmationHeight = fn.Some(height)

		return
	}

	r.Status = TxStatusPending
	r.ConfirmationHeight = fn.None[int32]()
}

// MergeSummary reports the effect of a merge.
type MergeSummary struct {
	// Inserted are the hashes of records created by the merge.
	Inserted []chainhash.Hash

	// Updated are the hashes of existing records touched by the merge.
	Updated []chainhash.Hash

	// Dropped are the hashes of records deleted because no tracked script
	// references them anymore.
	Dropped []chainhash.Hash
}

// TxLog is the ledger of transactions relevant to the account's scripts.
//
// NOTE: TxLog is not safe for concurrent use. The owning account serializes
// access to it.
type TxLog struct {
	records map[chainhash.Hash]*TxRecord
}

// NewTxLog creates an empty log.
func NewTxLog() *TxLog {
	return &TxLog{
		records: make(map[chainhash.Hash]*TxRecord),
	}
}

// Len returns the number of records.
func (l *TxLog) Len() int {
	return len(l.records)
}

// Merge folds the refreshed history of one script hash into the log.
// Records no longer listed for the script hash lose it and are dropped once
// no script hash references them. Listed records are created or updated.
func (l *TxLog) Merge(scriptHash string, items []HistoryItem) MergeSummary {
	var (
		summary MergeSummary
		listed  = make(map[chainhash.Hash]struct{}, len(items))
	)
	for _, item := range items {
		listed[item.Hash] = struct{}{}
	}

	for hash, rec := range l.records {
		if _, ok := listed[hash]; ok {
			continue
		}

		if !rec.ScriptHashes.Contains(scriptHash) {
			continue
		}

		rec.ScriptHashes.Remove(scriptHash)
		if len(rec.ScriptHashes) == 0 {
			delete(l.records, hash)
			summary.Dropped = append(summary.Dropped, hash)
		}
	}

	for _, item := range items {
		rec, ok := l.records[item.Hash]
		if !ok {
			rec = &TxRecord{
				Hash:         item.Hash,
				ScriptHashes: fn.NewSet[string](),
			}
			rec.applyHeight(item.Height)
			l.records[item.Hash] = rec
			summary.Inserted = append(summary.Inserted, item.Hash)
		} else {
			rec.applyHeight(item.Height)
			summary.Updated = append(summary.Updated, item.Hash)
		}

		rec.ScriptHashes.Add(scriptHash)
		if item.Fee.IsSome() {
			rec.Fee = item.Fee
		}
	}

	sortHashes(summary.Dropped)

	log.Debugf("Merged history of %s: %d inserted, %d updated, "+
		"%d dropped", scriptHash, len(summary.Inserted),
		len(summary.Updated), len(summary.Dropped))

	return summary
}

// Insert adds a complete record, as read back from a snapshot.
func (l *TxLog) Insert(rec TxRecord) error {
	if _, ok := l.records[rec.Hash]; ok {
		return fmt.Errorf("%w: %v", ErrDuplicateTx, rec.Hash)
	}

	if len(rec.ScriptHashes) == 0 {
		return fmt.Errorf("%w: %v", ErrNoScriptHashes, rec.Hash)
	}

	c := copyRecord(&rec)
	c.applyHeight(rec.Height)
	l.records[rec.Hash] = &c

	return nil
}

// Record returns the record with the given hash.
func (l *TxLog) Record(hash chainhash.Hash) (TxRecord, error) {
	rec, ok := l.records[hash]
	if !ok {
		return TxRecord{}, fmt.Errorf("%w: %v", ErrTxNotFound, hash)
	}

	return copyRecord(rec), nil
}

// Records returns every record, confirmed ones first by ascending height,
// then unconfirmed ones. Records at the same height are ordered by hash.
func (l *TxLog) Records() []TxRecord {
	return l.filter(func(*TxRecord) bool { return true })
}

// RecordsFor returns the records touching the given script hash in the same
// order as Records.
func (l *TxLog) RecordsFor(scriptHash string) []TxRecord {
	return l.filter(func(r *TxRecord) bool {
		return r.ScriptHashes.Contains(scriptHash)
	})
}

// filter returns copies of the records matching pred in log order.
func (l *TxLog) filter(pred func(*TxRecord) bool) []TxRecord {
	var recs []TxRecord
	for _, rec := range l.records {
		if pred(rec) {
			recs = append(recs, copyRecord(rec))
		}
	}

	sort.Slice(recs, func(i, j int) bool {
		a, b := &recs[i], &recs[j]

		aConf, bConf := a.Height > 0, b.Height > 0
		switch {
		case aConf != bConf:
			return aConf
		case aConf && a.Height != b.Height:
			return a.Height < b.Height
		}

		return bytes.Compare(a.Hash[:], b.Hash[:]) < 0
	})

	return recs
}

// SetVerification records the result of checking the merkle proof of a
// transaction.
func (l *TxLog) SetVerification(hash chainhash.Hash,
	status VerificationStatus, proof []byte) error {

	rec, ok := l.records[hash]
	if !ok {
		return fmt.Errorf("%w: %v", ErrTxNotFound, hash)
	}

	rec.Verification = status
	rec.MerkleProof = append([]byte(nil), proof...)
	if len(proof) == 0 {
		rec.MerkleProof = nil
	}

	return nil
}

// sortHashes orders hashes by their bytes.
func sortHashes(hashes []chainhash.Hash) {
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})
}
