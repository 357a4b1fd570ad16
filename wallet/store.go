// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/bchwallet/wallet/internal/db"
	"github.com/btcsuite/bchwallet/wallet/internal/db/kvdb"
)

// ErrUnknownBackend is returned for an unsupported snapshot store backend.
var ErrUnknownBackend = errors.New("unknown database backend")

// SnapshotStore persists account snapshots keyed by account name.
type SnapshotStore = db.SnapshotStore

const (
	// BackendKvdb stores snapshots in a bbolt database through walletdb.
	BackendKvdb = "kvdb"

	// BackendSQLite stores snapshots in a SQLite database.
	BackendSQLite = "sqlite"
)

// OpenKvdbStore opens or creates the bbolt snapshot database at path.
func OpenKvdbStore(path string) (SnapshotStore, error) {
	store, err := kvdb.Open(path, kvdb.DefaultDBTimeout)
	if err != nil {
		return nil, err
	}

	return store, nil
}

// OpenSQLiteStore opens or creates the SQLite snapshot database at path and
// migrates it to the latest schema.
func OpenSQLiteStore(path string) (SnapshotStore, error) {
	store, err := db.OpenSQLite(path)
	if err != nil {
		return nil, err
	}

	return store, nil
}

// OpenStore opens the snapshot store of the named backend.
func OpenStore(backend, path string) (SnapshotStore, error) {
	switch strings.ToLower(backend) {
	case BackendKvdb, "bdb":
		return OpenKvdbStore(path)

	case BackendSQLite:
		return OpenSQLiteStore(path)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
