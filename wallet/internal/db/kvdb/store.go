// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package kvdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/bchwallet/wallet/internal/db"
	"github.com/btcsuite/btcwallet/walletdb"

	// Register the bbolt backed walletdb driver.
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
)

// DefaultDBTimeout is the time to wait for the database file lock.
const DefaultDBTimeout = 10 * time.Second

var (
	// snapshotsBucketKey is the top-level bucket holding one nested
	// bucket per account.
	snapshotsBucketKey = []byte("snapshots")

	// entriesBucketKey is the account bucket holding the address
	// entries keyed by usage and index.
	entriesBucketKey = []byte("entries")

	// utxosBucketKey is the account bucket holding the unspent outputs
	// keyed by outpoint.
	utxosBucketKey = []byte("utxos")

	// txsBucketKey is the account bucket holding the history records
	// keyed by transaction hash.
	txsBucketKey = []byte("txs")
)

// Store is the kvdb (walletdb) implementation of the db.SnapshotStore
// interface. Every record is a TLV stream so new optional fields can be
// added without a migration.
type Store struct {
	db walletdb.DB
}

// A compile-time assertion to ensure that Store implements the
// db.SnapshotStore interface.
var _ db.SnapshotStore = (*Store)(nil)

// NewStore creates a new kvdb-backed snapshot store.
func NewStore(dbConn walletdb.DB) (*Store, error) {
	if dbConn == nil {
		return nil, db.ErrNilDB
	}

	err := walletdb.Update(dbConn, func(tx walletdb.ReadWriteTx) error {
		_, err := tx.CreateTopLevelBucket(snapshotsBucketKey)
		return err
	})
	if err != nil {
		return nil, db.NewError(db.ErrDatabase, "create snapshots "+
			"bucket", err)
	}

	return &Store{db: dbConn}, nil
}

// Open opens the bbolt database at path, creating it if it does not exist,
// and returns a store on it.
func Open(path string, timeout time.Duration) (*Store, error) {
	dbConn, err := walletdb.Open("bdb", path, true, timeout, false)
	if errors.Is(err, walletdb.ErrDbDoesNotExist) {
		dbConn, err = walletdb.Create("bdb", path, true, timeout,
			false)
	}
	if err != nil {
		return nil, db.NewError(db.ErrDatabase, "open bdb", err)
	}

	store, err := NewStore(dbConn)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	log.Debugf("Opened kvdb snapshot store at %s", path)

	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutSnapshot replaces the snapshot stored for the account.
func (s *Store) PutSnapshot(ctx context.Context, account string,
	snap *db.Snapshot) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		top := tx.ReadWriteBucket(snapshotsBucketKey)
		if top == nil {
			return db.NewError(db.ErrDatabase, "missing snapshots "+
				"bucket", nil)
		}

		key := []byte(account)
		if top.NestedReadWriteBucket(key) != nil {
			if err := top.DeleteNestedBucket(key); err != nil {
				return err
			}
		}

		acct, err := top.CreateBucket(key)
		if err != nil {
			return fmt.Errorf("create account bucket %q: %w",
				account, err)
		}

		if err := putEntries(acct, snap); err != nil {
			return err
		}

		if err := putUtxos(acct, snap); err != nil {
			return err
		}

		return putTxs(acct, snap)
	})
}

func putEntries(acct walletdb.ReadWriteBucket, snap *db.Snapshot) error {
	bucket, err := acct.CreateBucket(entriesBucketKey)
	if err != nil {
		return err
	}

	for i := range snap.Entries {
		e := &snap.Entries[i]

		v, err := encodeEntry(e)
		if err != nil {
			return db.NewError(db.ErrInvalidSnapshot,
				"encode entry", err)
		}

		if err := bucket.Put(entryKey(e.Path), v); err != nil {
			return err
		}
	}

	return nil
}

func putUtxos(acct walletdb.ReadWriteBucket, snap *db.Snapshot) error {
	bucket, err := acct.CreateBucket(utxosBucketKey)
	if err != nil {
		return err
	}

	for i := range snap.Utxos {
		u := &snap.Utxos[i]

		v, err := encodeUtxo(u)
		if err != nil {
			return db.NewError(db.ErrInvalidSnapshot,
				"encode utxo", err)
		}

		if err := bucket.Put(outPointKey(&u.OutPoint), v); err != nil {
			return err
		}
	}

	return nil
}

func putTxs(acct walletdb.ReadWriteBucket, snap *db.Snapshot) error {
	bucket, err := acct.CreateBucket(txsBucketKey)
	if err != nil {
		return err
	}

	for i := range snap.History {
		r := &snap.History[i]

		v, err := encodeTx(r)
		if err != nil {
			return db.NewError(db.ErrInvalidSnapshot,
				"encode tx", err)
		}

		if err := bucket.Put(r.Hash[:], v); err != nil {
			return err
		}
	}

	return nil
}

// FetchSnapshot returns the snapshot stored for the account. Records come
// back in key order: entries by usage and index, outputs by outpoint and
// history by hash.
func (s *Store) FetchSnapshot(ctx context.Context,
	account string) (*db.Snapshot, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := &db.Snapshot{}
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		top := tx.ReadBucket(snapshotsBucketKey)
		if top == nil {
			return fmt.Errorf("%w: %s", db.ErrSnapshotNotFound,
				account)
		}

		acct := top.NestedReadBucket([]byte(account))
		if acct == nil {
			return fmt.Errorf("%w: %s", db.ErrSnapshotNotFound,
				account)
		}

		err := forEach(acct, entriesBucketKey, func(k, v []byte) error {
			e, err := decodeEntry(k, v)
			if err != nil {
				return err
			}

			snap.Entries = append(snap.Entries, e)

			return nil
		})
		if err != nil {
			return err
		}

		err = forEach(acct, utxosBucketKey, func(k, v []byte) error {
			u, err := decodeUtxo(k, v)
			if err != nil {
				return err
			}

			snap.Utxos = append(snap.Utxos, u)

			return nil
		})
		if err != nil {
			return err
		}

		return forEach(acct, txsBucketKey, func(k, v []byte) error {
			r, err := decodeTx(k, v)
			if err != nil {
				return err
			}

			snap.History = append(snap.History, r)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// forEach runs f on every key of the named sub bucket. A decoding failure is
// reported as a corrupt snapshot.
func forEach(acct walletdb.ReadBucket, key []byte,
	f func(k, v []byte) error) error {

	bucket := acct.NestedReadBucket(key)
	if bucket == nil {
		return db.NewError(db.ErrCorruptSnapshot,
			fmt.Sprintf("missing %s bucket", key), nil)
	}

	return bucket.ForEach(func(k, v []byte) error {
		if err := f(k, v); err != nil {
			return db.NewError(db.ErrCorruptSnapshot,
				fmt.Sprintf("decode %s record %x", key, k), err)
		}

		return nil
	})
}

// DeleteSnapshot removes the snapshot of the account, if any.
func (s *Store) DeleteSnapshot(ctx context.Context, account string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		top := tx.ReadWriteBucket(snapshotsBucketKey)
		if top == nil {
			return nil
		}

		key := []byte(account)
		if top.NestedReadWriteBucket(key) == nil {
			return nil
		}

		return top.DeleteNestedBucket(key)
	})
}
