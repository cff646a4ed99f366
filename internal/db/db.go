// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

// Package db provides the tier-routed data access layer for Tallysync.
// It abstracts two structurally different backends (a remote shared
// relational store for GOLD/TRIAL users and a local embedded SQLite store
// for SILVER users) behind a consistent interface, so the rest of the
// application can interact with either in a uniform way.
package db // import "github.com/tallysync/tallysync/internal/db"

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/tallysync/tallysync/internal/config"

	// SQL drivers required for runtime and integration tests.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// sqlOpenFunc allows tests to override database opening behavior.
var sqlOpenFunc = sql.Open

// Router resolves a license tier to a backend handle. Resolution happens
// fresh on every call so a tier change between calls is honored immediately;
// only the embedded SQLite handle is kept alive across operations, because
// that backend is designed around a single long-lived connection.
type Router struct {
	cfg config.Config

	mu    sync.Mutex
	local *localBackend
}

// NewRouter returns a Router over the given configuration. No connection is
// opened until the first Acquire.
func NewRouter(cfg config.Config) *Router {
	return &Router{cfg: cfg}
}

// Acquire resolves the tier to a live backend. GOLD and TRIAL open a fresh
// remote connection the caller must Release on every exit path; SILVER
// returns the shared embedded handle. Unknown tiers fail before any I/O.
func (r *Router) Acquire(ctx context.Context, tier Tier) (Backend, error) {
	switch {
	case tier.Remote():
		return r.openRemote(ctx)
	case tier == TierSilver:
		return r.acquireLocal(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTier, tier)
	}
}

// Close releases the long-lived embedded handle, if one was opened.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.local == nil {
		return nil
	}
	err := r.local.db.Close()
	r.local = nil
	return err
}

// openRemote opens a connection-per-call handle to the shared store and
// makes sure the schema exists before handing it out.
func (r *Router) openRemote(ctx context.Context) (Backend, error) {
	dsn, err := r.cfg.Remote.DSN()
	if err != nil {
		return nil, fmt.Errorf("remote backend not configured: %w", err)
	}
	kind := r.cfg.Remote.Driver
	driverName := kind
	// The pgx stdlib registers driver name "pgx"; map "postgres" to that driver.
	if kind == "postgres" {
		driverName = "pgx"
	}
	start := time.Now()
	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote database: %w", err)
	}
	// The handle lives for one logical operation; keep the pool minimal.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to remote database: %w", err)
	}
	b := &remoteBackend{db: createBunDB(sqlDB, kind), kind: kind}
	if err := EnsureSchema(ctx, b); err != nil {
		_ = b.Release()
		return nil, fmt.Errorf("remote schema bootstrap failed: %w", err)
	}
	dbLogf("db: opened %s remote backend in %s", kind, time.Since(start))
	return b, nil
}

// acquireLocal returns the embedded handle, opening it on first use. A
// failed schema bootstrap leaves nothing cached, so the next call retries
// from scratch rather than reusing a half-initialized handle.
func (r *Router) acquireLocal(ctx context.Context) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.local != nil {
		return r.local, nil
	}

	dsn, err := r.localDSN()
	if err != nil {
		return nil, err
	}
	sqlDB, err := sqlOpenFunc("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded database: %w", err)
	}
	// In-memory databases exist per connection; force a single connection so
	// the schema stays visible. Tests commonly rely on this.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}
	b := &localBackend{db: createBunDB(sqlDB, "sqlite")}
	if err := EnsureSchema(ctx, b); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("embedded schema bootstrap failed: %w", err)
	}
	dbLogf("db: opened embedded backend at %s", dsn)
	r.local = b
	return b, nil
}

// localDSN resolves the embedded database location. A `file:` prefixed File
// is taken verbatim, which lets tests point the router at an in-memory DSN.
func (r *Router) localDSN() (string, error) {
	if strings.HasPrefix(r.cfg.Local.File, "file:") {
		return r.cfg.Local.File, nil
	}
	return r.cfg.Local.Path()
}

// createBunDB constructs a *bun.DB for the provided *sql.DB and engine kind.
// Centralizing construction keeps dialect selection in one place.
func createBunDB(sqlDB *sql.DB, kind string) *bun.DB {
	switch kind {
	case "postgres":
		return bun.NewDB(sqlDB, pgdialect.New())
	case "mysql":
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}
