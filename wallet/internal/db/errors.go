// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package db

import "errors"

var (
	// ErrNilDB is returned when a store is created without a database
	// connection.
	ErrNilDB = errors.New("nil database connection")

	// ErrSnapshotNotFound is returned when no snapshot is stored for the
	// requested account.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrDatabase indicates a database error.
	ErrDatabase ErrorCode = iota

	// ErrCorruptSnapshot indicates a stored snapshot that cannot be
	// decoded.
	ErrCorruptSnapshot

	// ErrInvalidSnapshot indicates a snapshot that cannot be stored.
	ErrInvalidSnapshot
)

// Error identifies a wallet database error. It has an error code and a
// descriptive message.
type Error struct {
	Code ErrorCode
	Desc string
	Err  error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Desc + ": " + e.Err.Error()
	}

	return e.Desc
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// newError creates an Error given a set of arguments.
func newError(c ErrorCode, desc string, err error) Error {
	return Error{Code: c, Desc: desc, Err: err}
}

// NewError creates an Error for use by the database backends.
func NewError(c ErrorCode, desc string, err error) Error {
	return newError(c, desc, err)
}

// IsError returns true if err is an Error with the given code.
func IsError(err error, code ErrorCode) bool {
	var dbErr Error
	if !errors.As(err, &dbErr) {
		return false
	}

	return dbErr.Code == code
}
