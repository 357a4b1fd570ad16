// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/bchwallet/wallet"
	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

const (
	// logDirPerm restricts the log directory to the current user since
	// logs carry addresses and outpoints.
	logDirPerm = 0o700

	// maxLogFileSizeKB is the size at which the log file is rolled.
	maxLogFileSizeKB = 10 * 1024

	// maxLogFiles is the number of rolled log files kept.
	maxLogFiles = 3
)

// logWriter writes to stdout and, once the rotator is initialized, to the
// log file.
type logWriter struct {
	pipe *io.PipeWriter
}

// Write implements io.Writer.
func (w *logWriter) Write(b []byte) (int, error) {
	_, _ = os.Stdout.Write(b)
	if w.pipe != nil {
		_, _ = w.pipe.Write(b)
	}

	return len(b), nil
}

var (
	writer  = &logWriter{}
	backend = btclog.NewBackend(writer)

	logRotator *rotator.Rotator

	log  = backend.Logger("CTL")
	bcwl = backend.Logger("BCWL")
	amgr = backend.Logger("AMGR")
	tmgr = backend.Logger("TMGR")
	txau = backend.Logger("TXAU")
	tokn = backend.Logger("TOKN")

	subsystemLoggers = map[string]btclog.Logger{
		"CTL":  log,
		"BCWL": bcwl,
		"AMGR": amgr,
		"TMGR": tmgr,
		"TXAU": txau,
		"TOKN": tokn,
	}
)

func init() {
	wallet.UseLoggers(bcwl, amgr, tmgr, txau, tokn)
}

// initLogRotator creates the log directory and starts rolling logFile.
// It must be closed with closeLogRotator on shutdown.
func initLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, logDirPerm); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	r, err := rotator.New(logFile, maxLogFileSizeKB, false, maxLogFiles)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		if err := r.Run(pr); err != nil {
			_, _ = fmt.Fprintf(os.Stderr,
				"failed to run file rotator: %v\n", err)
		}
	}()

	logRotator = r
	writer.pipe = pw

	return nil
}

// closeLogRotator flushes and closes the log file.
func closeLogRotator() {
	if writer.pipe != nil {
		_ = writer.pipe.Close()
	}

	if logRotator != nil {
		_ = logRotator.Close()
	}
}

// setLogLevels sets every subsystem logger to the named level.
func setLogLevels(level string) error {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("invalid debug level %q", level)
	}

	for _, logger := range subsystemLoggers {
		logger.SetLevel(lvl)
	}

	return nil
}
