// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/btcsuite/bchwallet/waddrmgr"
	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"

	// Register the pure Go sqlite driver.
	_ "modernc.org/sqlite"
)

// SQLiteStore is the SQLite implementation of the SnapshotStore interface.
type SQLiteStore struct {
	db *sql.DB
}

// A compile-time assertion to ensure SQLiteStore implements SnapshotStore.
var _ SnapshotStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a SQLite-based SnapshotStore on an already opened
// database. The schema migrations are applied before it is returned.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, ErrNilDB
	}

	if err := ApplySQLiteMigrations(db); err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// sqliteDSN returns the connection string for the database file at path,
// with foreign keys and WAL enabled.
func sqliteDSN(path string) string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys=on")
	params.Add("_pragma", "journal_mode=WAL")
	params.Add("_pragma", "busy_timeout=5000")
	params.Add("_txlock", "immediate")

	return path + "?" + params.Encode()
}

// OpenSQLite opens or creates the SQLite database at path and returns a
// store on it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, newError(ErrDatabase, "open sqlite", err)
	}

	// SQLite serializes writers anyway. A single connection keeps
	// immediate transactions from failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debugf("Opened sqlite snapshot store at %s", path)

	return store, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PutSnapshot replaces the snapshot stored for the account.
func (s *SQLiteStore) PutSnapshot(ctx context.Context, account string,
	snap *Snapshot) error {

	return execInTx(ctx, s.db, func(tx *sql.Tx) error {
		id, err := ensureAccount(ctx, tx, account)
		if err != nil {
			return err
		}

		if err := clearAccount(ctx, tx, id); err != nil {
			return err
		}

		if err := insertEntries(ctx, tx, id, snap.Entries); err != nil {
			return err
		}

		if err := insertUtxos(ctx, tx, id, snap.Utxos); err != nil {
			return err
		}

		return insertHistory(ctx, tx, id, snap.History)
	})
}

// FetchSnapshot returns the snapshot stored for the account.
func (s *SQLiteStore) FetchSnapshot(ctx context.Context,
	account string) (*Snapshot, error) {

	var snap *Snapshot
	err := execInTx(ctx, s.db, func(tx *sql.Tx) error {
		id, err := accountID(ctx, tx, account)
		if err != nil {
			return err
		}

		snap = &Snapshot{}

		snap.Entries, err = fetchEntries(ctx, tx, id)
		if err != nil {
			return err
		}

		snap.Utxos, err = fetchUtxos(ctx, tx, id)
		if err != nil {
			return err
		}

		snap.History, err = fetchHistory(ctx, tx, id)

		return err
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// DeleteSnapshot removes the account and everything it owns.
func (s *SQLiteStore) DeleteSnapshot(ctx context.Context,
	account string) error {

	return execInTx(ctx, s.db, func(tx *sql.Tx) error {
		id, err := accountID(ctx, tx, account)
		if errors.Is(err, ErrSnapshotNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := clearAccount(ctx, tx, id); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`DELETE FROM accounts WHERE id = ?`, id)
		if err != nil {
			return newError(ErrDatabase, "delete account", err)
		}

		return nil
	})
}

// accountID returns the row id of the named account.
func accountID(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM accounts WHERE name = ?`, name,
	).Scan(&id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)

	case err != nil:
		return 0, newError(ErrDatabase, "select account", err)
	}

	return id, nil
}

// ensureAccount returns the row id of the named account, creating the row
// if needed.
func ensureAccount(ctx context.Context, tx *sql.Tx, name string) (int64,
	error) {

	id, err := accountID(ctx, tx, name)
	if !errors.Is(err, ErrSnapshotNotFound) {
		return id, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (name) VALUES (?)`, name)
	if err != nil {
		return 0, newError(ErrDatabase, "insert account", err)
	}

	id, err = res.LastInsertId()
	if err != nil {
		return 0, newError(ErrDatabase, "account id", err)
	}

	return id, nil
}

// clearAccount deletes every row owned by the account but keeps the account
// row itself. Children are deleted explicitly so the result does not depend
// on the foreign_keys pragma of the connection.
func clearAccount(ctx context.Context, tx *sql.Tx, id int64) error {
	tables := []string{
		"tx_script_hashes", "txs", "utxos", "entries",
	}
	for _, table := range tables {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE account_id = ?", id)
		if err != nil {
			return newError(ErrDatabase, "clear "+table, err)
		}
	}

	return nil
}

func insertEntries(ctx context.Context, tx *sql.Tx, id int64,
	entries []waddrmgr.EntryState) error {

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (account_id, usage, idx, used,
			cached_balance, cache_updated_at, cache_valid_for)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return newError(ErrDatabase, "prepare entries", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		balance := optionToNull(e.Cache.Balance,
			func(a btcutil.Amount) int64 { return int64(a) })
		updated := optionToNull(e.Cache.LastUpdated,
			func(t time.Time) int64 { return t.UnixNano() })

		_, err := stmt.ExecContext(ctx, id, int64(e.Path.Usage),
			int64(e.Path.Index), e.Used, balance, updated,
			int64(e.Cache.ValidFor))
		if err != nil {
			return newError(ErrDatabase,
				fmt.Sprintf("insert entry %v", e.Path), err)
		}
	}

	return nil
}

func fetchEntries(ctx context.Context, tx *sql.Tx,
	id int64) ([]waddrmgr.EntryState, error) {

	rows, err := tx.QueryContext(ctx, `
		SELECT usage, idx, used, cached_balance, cache_updated_at,
			cache_valid_for
		FROM entries WHERE account_id = ?
		ORDER BY usage, idx`, id)
	if err != nil {
		return nil, newError(ErrDatabase, "select entries", err)
	}
	defer rows.Close()

	var entries []waddrmgr.EntryState
	for rows.Next() {
		var (
			usage, index, validFor int64
			used                   bool
			balance, updated       sql.NullInt64
		)
		err := rows.Scan(&usage, &index, &used, &balance, &updated,
			&validFor)
		if err != nil {
			return nil, newError(ErrDatabase, "scan entry", err)
		}

		u, err := int64ToUint8(usage)
		if err != nil {
			return nil, err
		}

		idx, err := int64ToUint32(index)
		if err != nil {
			return nil, err
		}

		entries = append(entries, waddrmgr.EntryState{
			Path: waddrmgr.DerivationPath{
				Usage: waddrmgr.Usage(u),
				Index: idx,
			},
			Used: used,
			Cache: waddrmgr.BalanceCache{
				Balance: nullToOption(balance,
					func(v int64) btcutil.Amount {
						return btcutil.Amount(v)
					}),
				LastUpdated: nullToOption(updated,
					func(v int64) time.Time {
						return time.Unix(0, v)
					}),
				ValidFor: time.Duration(validFor),
			},
		})
	}

	if err := rows.Err(); err != nil {
		return nil, newError(ErrDatabase, "iterate entries", err)
	}

	return entries, nil
}

func insertUtxos(ctx context.Context, tx *sql.Tx, id int64,
	utxos []wtxmgr.Utxo) error {

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO utxos (account_id, tx_hash, out_index, amount,
			pk_script, token_category, token_amount,
			nft_capability, nft_commitment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return newError(ErrDatabase, "prepare utxos", err)
	}
	defer stmt.Close()

	for _, u := range utxos {
		var (
			category            []byte
			tokenAmount, nftCap sql.NullInt64
			commitment          []byte
		)
		if u.Token != nil {
			category = u.Token.Category[:]

			amt, err := uint64ToInt64(u.Token.Amount)
			if err != nil {
				return newError(ErrInvalidSnapshot,
					fmt.Sprintf("token amount of %v",
						u.OutPoint), err)
			}
			tokenAmount = sql.NullInt64{Int64: amt, Valid: true}

			if u.Token.NFT != nil {
				nftCap = sql.NullInt64{
					Int64: int64(u.Token.NFT.Capability),
					Valid: true,
				}

				// A non-nil slice marks the NFT as present
				// even with an empty commitment.
				commitment = append([]byte{},
					u.Token.NFT.Commitment...)
			}
		}

		_, err := stmt.ExecContext(ctx, id, u.OutPoint.Hash[:],
			int64(u.OutPoint.Index), int64(u.Amount), u.PkScript,
			category, tokenAmount, nftCap, commitment)
		if err != nil {
			return newError(ErrDatabase,
				fmt.Sprintf("insert utxo %v", u.OutPoint), err)
		}
	}

	return nil
}

func fetchUtxos(ctx context.Context, tx *sql.Tx,
	id int64) ([]wtxmgr.Utxo, error) {

	rows, err := tx.QueryContext(ctx, `
		SELECT tx_hash, out_index, amount, pk_script, token_category,
			token_amount, nft_capability, nft_commitment
		FROM utxos WHERE account_id = ?
		ORDER BY tx_hash, out_index`, id)
	if err != nil {
		return nil, newError(ErrDatabase, "select utxos", err)
	}
	defer rows.Close()

	var utxos []wtxmgr.Utxo
	for rows.Next() {
		var (
			hash, script, category, commitment []byte
			index, amount                      int64
			tokenAmount, nftCap                sql.NullInt64
		)
		err := rows.Scan(&hash, &index, &amount, &script, &category,
			&tokenAmount, &nftCap, &commitment)
		if err != nil {
			return nil, newError(ErrDatabase, "scan utxo", err)
		}

		txHash, err := chainhash.NewHash(hash)
		if err != nil {
			return nil, newError(ErrCorruptSnapshot, "utxo hash", err)
		}

		idx, err := int64ToUint32(index)
		if err != nil {
			return nil, err
		}

		u := wtxmgr.Utxo{
			OutPoint: *wire.NewOutPoint(txHash, idx),
			Amount:   btcutil.Amount(amount),
			PkScript: script,
		}

		if category != nil {
			u.Token, err = scanToken(category, tokenAmount, nftCap,
				commitment)
			if err != nil {
				return nil, err
			}
		}

		utxos = append(utxos, u)
	}

	if err := rows.Err(); err != nil {
		return nil, newError(ErrDatabase, "iterate utxos", err)
	}

	return utxos, nil
}

// scanToken rebuilds a token prefix from its columns.
func scanToken(category []byte, amount, capability sql.NullInt64,
	commitment []byte) (*wtxmgr.TokenData, error) {

	cat, err := chainhash.NewHash(category)
	if err != nil {
		return nil, newError(ErrCorruptSnapshot, "token category", err)
	}

	token := &wtxmgr.TokenData{Category: *cat}
	if amount.Valid {
		token.Amount, err = int64ToUint64(amount.Int64)
		if err != nil {
			return nil, err
		}
	}

	if capability.Valid {
		c, err := int64ToUint8(capability.Int64)
		if err != nil {
			return nil, err
		}

		token.NFT = &wtxmgr.NonFungibleToken{
			Capability: wtxmgr.NFTCapability(c),
			Commitment: commitment,
		}
		if len(commitment) == 0 {
			token.NFT.Commitment = nil
		}
	}

	return token, nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, id int64,
	records []wtxmgr.TxRecord) error {

	txStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO txs (account_id, tx_hash, height, fee,
			verification, merkle_proof)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return newError(ErrDatabase, "prepare txs", err)
	}
	defer txStmt.Close()

	shStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tx_script_hashes (account_id, tx_hash, script_hash)
		VALUES (?, ?, ?)`)
	if err != nil {
		return newError(ErrDatabase, "prepare script hashes", err)
	}
	defer shStmt.Close()

	for _, r := range records {
		fee := optionToNull(r.Fee,
			func(a btcutil.Amount) int64 { return int64(a) })

		_, err := txStmt.ExecContext(ctx, id, r.Hash[:],
			int64(r.Height), fee, int64(r.Verification),
			r.MerkleProof)
		if err != nil {
			return newError(ErrDatabase,
				fmt.Sprintf("insert tx %v", r.Hash), err)
		}

		for _, sh := range r.ScriptHashes.ToSlice() {
			_, err := shStmt.ExecContext(ctx, id, r.Hash[:], sh)
			if err != nil {
				return newError(ErrDatabase,
					fmt.Sprintf("insert script hash of %v",
						r.Hash), err)
			}
		}
	}

	return nil
}

func fetchHistory(ctx context.Context, tx *sql.Tx,
	id int64) ([]wtxmgr.TxRecord, error) {

	hashes, err := fetchScriptHashes(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT tx_hash, height, fee, verification, merkle_proof
		FROM txs WHERE account_id = ?
		ORDER BY tx_hash`, id)
	if err != nil {
		return nil, newError(ErrDatabase, "select txs", err)
	}
	defer rows.Close()

	var records []wtxmgr.TxRecord
	for rows.Next() {
		var (
			hash, proof          []byte
			height, verification int64
			fee                  sql.NullInt64
		)
		err := rows.Scan(&hash, &height, &fee, &verification, &proof)
		if err != nil {
			return nil, newError(ErrDatabase, "scan tx", err)
		}

		txHash, err := chainhash.NewHash(hash)
		if err != nil {
			return nil, newError(ErrCorruptSnapshot, "tx hash", err)
		}

		h, err := int64ToInt32(height)
		if err != nil {
			return nil, err
		}

		v, err := int64ToUint8(verification)
		if err != nil {
			return nil, err
		}

		records = append(records, wtxmgr.TxRecord{
			Hash:   *txHash,
			Height: h,
			Fee: nullToOption(fee, func(v int64) btcutil.Amount {
				return btcutil.Amount(v)
			}),
			ScriptHashes: fn.NewSet(hashes[*txHash]...),
			Verification: wtxmgr.VerificationStatus(v),
			MerkleProof:  proof,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, newError(ErrDatabase, "iterate txs", err)
	}

	return records, nil
}

// fetchScriptHashes returns the fingerprints of every transaction of the
// account keyed by transaction hash.
func fetchScriptHashes(ctx context.Context, tx *sql.Tx,
	id int64) (map[chainhash.Hash][]string, error) {

	rows, err := tx.QueryContext(ctx, `
		SELECT tx_hash, script_hash FROM tx_script_hashes
		WHERE account_id = ?`, id)
	if err != nil {
		return nil, newError(ErrDatabase, "select script hashes", err)
	}
	defer rows.Close()

	hashes := make(map[chainhash.Hash][]string)
	for rows.Next() {
		var (
			hash []byte
			sh   string
		)
		if err := rows.Scan(&hash, &sh); err != nil {
			return nil, newError(ErrDatabase, "scan script hash",
				err)
		}

		txHash, err := chainhash.NewHash(hash)
		if err != nil {
			return nil, newError(ErrCorruptSnapshot, "tx hash", err)
		}

		hashes[*txHash] = append(hashes[*txHash], sh)
	}

	if err := rows.Err(); err != nil {
		return nil, newError(ErrDatabase, "iterate script hashes", err)
	}

	return hashes, nil
}

// optionToNull maps an optional value to a nullable column.
func optionToNull[T any](o fn.Option[T], f func(T) int64) sql.NullInt64 {
	return fn.MapOptionZ(o, func(v T) sql.NullInt64 {
		return sql.NullInt64{Int64: f(v), Valid: true}
	})
}

// nullToOption maps a nullable column to an optional value.
func nullToOption[T any](n sql.NullInt64, f func(int64) T) fn.Option[T] {
	if !n.Valid {
		return fn.None[T]()
	}

	return fn.Some(f(n.Int64))
}
