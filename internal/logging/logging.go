// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

// Package logging provides the application-wide logger for Tallysync.
// It wraps charmbracelet/log behind small formatted helpers so callers
// never depend on the logger implementation directly.
package logging

import (
	"fmt"
	"os"

	clog "github.com/charmbracelet/log"
)

// L is the package-level logger. Callers should use the helper functions
// below for compatibility with existing calls.
var L = clog.New(os.Stderr)

// SetDebug enables or disables debug logging for the application.
func SetDebug(enabled bool) {
	if enabled {
		L.SetLevel(clog.DebugLevel)
	} else {
		L.SetLevel(clog.InfoLevel)
	}
}

// Debugf logs a debug-level formatted message.
func Debugf(format string, v ...any) {
	L.Debug(fmt.Sprintf(format, v...))
}

// Infof logs an info-level formatted message.
func Infof(format string, v ...any) {
	L.Info(fmt.Sprintf(format, v...))
}

// Warnf logs a warning-level formatted message.
func Warnf(format string, v ...any) {
	L.Warn(fmt.Sprintf(format, v...))
}

// Errorf logs an error-level formatted message.
func Errorf(format string, v ...any) {
	L.Error(fmt.Sprintf(format, v...))
}
