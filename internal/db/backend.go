// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

// This file defines the backend capability surface shared by the remote and
// embedded stores. Call sites never branch on tier; they talk to a Backend
// and let the router pick the implementation.
package db

import (
	"strconv"
	"strings"

	"github.com/uptrace/bun"
)

// Backend is a live handle to one of the two stores. Remote backends are
// opened per logical operation and must be released on every exit path;
// the embedded backend is long-lived and Release is a no-op there.
type Backend interface {
	// Bun returns the dialect-aware database handle.
	Bun() *bun.DB
	// Kind returns the engine name: "sqlite", "postgres" or "mysql".
	Kind() string
	// Rebind rewrites a query written with neutral '?' placeholders into
	// the engine's placeholder convention.
	Rebind(query string) string
	// Release returns the handle to its owner. It must be called on every
	// exit path, success or failure.
	Release() error
}

// remoteBackend wraps a connection-per-call handle to the shared store.
type remoteBackend struct {
	db   *bun.DB
	kind string
}

func (b *remoteBackend) Bun() *bun.DB { return b.db }

func (b *remoteBackend) Kind() string { return b.kind }

func (b *remoteBackend) Rebind(query string) string { return rebind(b.kind, query) }

func (b *remoteBackend) Release() error {
	err := b.db.Close()
	if err != nil {
		dbLogf("db: error closing remote backend: %v", err)
	}
	return err
}

// localBackend wraps the long-lived embedded handle. The handle is owned by
// the Router and survives across operations; SQLite's own locking serializes
// concurrent callers.
type localBackend struct {
	db *bun.DB
}

func (b *localBackend) Bun() *bun.DB { return b.db }

func (b *localBackend) Kind() string { return "sqlite" }

func (b *localBackend) Rebind(query string) string { return query }

func (b *localBackend) Release() error { return nil }

// rebind translates neutral '?' placeholders to the engine's convention.
// SQLite and MySQL take '?' as-is; Postgres needs ordinal '$n' markers.
// Question marks inside single-quoted literals are left alone.
func rebind(kind, query string) string {
	if kind != "postgres" {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			sb.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
