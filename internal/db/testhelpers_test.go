// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"testing"

	"github.com/tallysync/tallysync/internal/config"
)

// newTestGateway returns a Gateway whose SILVER tier is backed by a
// per-test in-memory SQLite database. The shared-cache DSN keyed by the
// test name gives every test an isolated schema while the router keeps its
// single long-lived handle semantics.
func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	cfg := config.Config{}
	cfg.Local.File = "file:test_" + t.Name() + "?mode=memory&cache=shared"
	gw := NewGateway(NewRouter(cfg))
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}
