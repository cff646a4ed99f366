// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

package license

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"

	"github.com/denisbrodbeck/machineid"
)

// machineIDFunc allows tests to substitute the platform machine id source.
var machineIDFunc = machineid.ID

// HardwareID returns the stable per-machine identifier, hashed with SHA-256
// before it ever leaves this function. The raw platform id is never
// persisted or compared directly.
func HardwareID() (string, error) {
	raw, err := machineIDFunc()
	if err != nil {
		// No platform id available (containers, stripped-down installs).
		// Fall back to coarse system properties; weaker, but stable enough
		// to keep the binding usable.
		raw = fallbackHardwareID()
	}
	if raw == "" {
		return "", fmt.Errorf("no hardware identifier available")
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:]), nil
}

func fallbackHardwareID() string {
	hostname, err := os.Hostname()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s-%s-%s-%d", hostname, runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
}
