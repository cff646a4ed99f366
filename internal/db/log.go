// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import "github.com/tallysync/tallysync/internal/logging"

var debugEnabled bool

// SetDebug enables or disables DB debug logging. Disabled by default.
func SetDebug(enabled bool) {
	debugEnabled = enabled
}

func dbLogf(format string, v ...any) {
	if debugEnabled {
		logging.Debugf(format, v...)
	}
}
