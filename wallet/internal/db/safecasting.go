// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package db

import (
	"errors"
	"fmt"

	"github.com/ccoveille/go-safecast"
)

// ErrCastingOverflow is returned when a value cannot be safely cast to the
// desired type.
var ErrCastingOverflow = errors.New("casting overflow")

// castErr wraps a safecast failure so callers can match
// ErrCastingOverflow.
func castErr(v any, to string, err error) error {
	return fmt.Errorf("could not cast %v to %s: %w: %w", v, to,
		ErrCastingOverflow, err)
}

// int64ToUint32 safely casts an int64 to an uint32, returning an error
// if the value is out of range.
func int64ToUint32(v int64) (uint32, error) {
	c, err := safecast.ToUint32(v)
	if err != nil {
		return 0, castErr(v, "uint32", err)
	}

	return c, nil
}

// int64ToInt32 safely casts an int64 to an int32, returning an error
// if the value is out of range.
func int64ToInt32(v int64) (int32, error) {
	c, err := safecast.ToInt32(v)
	if err != nil {
		return 0, castErr(v, "int32", err)
	}

	return c, nil
}

// int64ToUint8 safely casts an int64 to an uint8, returning an error
// if the value is out of range.
func int64ToUint8(v int64) (uint8, error) {
	c, err := safecast.ToUint8(v)
	if err != nil {
		return 0, castErr(v, "uint8", err)
	}

	return c, nil
}

// int64ToUint64 safely casts an int64 to an uint64, returning an error
// if the value is negative.
func int64ToUint64(v int64) (uint64, error) {
	c, err := safecast.ToUint64(v)
	if err != nil {
		return 0, castErr(v, "uint64", err)
	}

	return c, nil
}

// uint64ToInt64 safely casts an uint64 to an int64, returning an error
// if the value is out of range.
func uint64ToInt64(v uint64) (int64, error) {
	c, err := safecast.ToInt64(v)
	if err != nil {
		return 0, castErr(v, "int64", err)
	}

	return c, nil
}
