// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

// This file contains the idempotent schema bootstrap. The anchor table
// (`users`) gates creation: when it exists the whole bootstrap is a no-op,
// otherwise all seven tables are created inside one transaction so a failed
// first run never leaves a partial schema behind.
package db

import (
	"context"
	"fmt"
)

// EnsureSchema checks for the anchor table on the given backend and creates
// the full schema when it is absent. Safe under concurrent first runs: every
// statement uses IF NOT EXISTS and the batch runs in a single transaction.
func EnsureSchema(ctx context.Context, b Backend) error {
	exists, err := anchorTableExists(ctx, b)
	if err != nil {
		return fmt.Errorf("failed to probe schema: %w", err)
	}
	if exists {
		return nil
	}

	dbLogf("db: creating %s schema", b.Kind())
	tx, err := b.Bun().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Note: MySQL DDL is auto-committing, so the transaction only buys full
	// atomicity on SQLite and Postgres. IF NOT EXISTS keeps a MySQL retry
	// after partial failure safe regardless.
	for _, stmt := range schemaStatements(b.Kind()) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}

// anchorTableExists probes for the `users` table with the engine-appropriate
// catalog query.
func anchorTableExists(ctx context.Context, b Backend) (bool, error) {
	var query string
	switch b.Kind() {
	case "postgres":
		query = `SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'users')`
	case "mysql":
		query = `SELECT COUNT(*) > 0 FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = 'users'`
	default:
		query = `SELECT COUNT(*) > 0 FROM sqlite_master WHERE type = 'table' AND name = 'users'`
	}
	var exists bool
	if err := b.Bun().QueryRowContext(ctx, query).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// schemaStatements returns the CREATE TABLE batch for the engine. The three
// variants only differ in key/timestamp/JSON column spellings.
func schemaStatements(kind string) []string {
	var pk, ts, js string
	switch kind {
	case "postgres":
		pk = "SERIAL PRIMARY KEY"
		ts = "TIMESTAMP WITH TIME ZONE"
		js = "JSONB"
	case "mysql":
		pk = "INT AUTO_INCREMENT PRIMARY KEY"
		ts = "DATETIME"
		js = "JSON"
	default:
		pk = "INTEGER PRIMARY KEY AUTOINCREMENT"
		ts = "TIMESTAMP"
		js = "TEXT"
	}
	// MySQL cannot index bare TEXT columns; use VARCHAR where a key needs one.
	text := "TEXT"
	keyText := "TEXT"
	if kind == "mysql" {
		keyText = "VARCHAR(191)"
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %s,
			cognito_id %s NOT NULL,
			username %s NOT NULL,
			email %s NOT NULL UNIQUE,
			created_at %s,
			updated_at %s
		)`, pk, text, text, keyText, ts, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS companies (
			company_id %s PRIMARY KEY,
			company_name %s NOT NULL,
			created_by %s NOT NULL,
			created_at %s
		)`, keyText, text, text, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_companies (
			id %s,
			user_email %s NOT NULL,
			company_id %s NOT NULL,
			role %s,
			last_sync_time %s
		)`, pk, text, text, text, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS ledgers (
			ledger_id %s,
			company_id %s NOT NULL,
			description %s NOT NULL,
			closing_balance NUMERIC NOT NULL,
			timestamp %s,
			extra_data %s
		)`, pk, text, text, ts, js),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS licenses (
			id %s,
			license_key %s NOT NULL UNIQUE,
			user_id %s NOT NULL UNIQUE,
			valid_till %s NOT NULL,
			status %s NOT NULL,
			hardware_id %s,
			detected_hardware_id %s,
			created_at %s,
			updated_at %s
		)`, pk, keyText, keyText, ts, text, text, text, ts, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS temporary_transactions (
			id %s,
			upload_id %s NOT NULL,
			email %s NOT NULL,
			company %s NOT NULL,
			bank_account %s NOT NULL,
			transaction_date %s,
			transaction_type %s,
			description %s NOT NULL,
			amount NUMERIC,
			assigned_ledger %s DEFAULT '',
			status %s DEFAULT ''
		)`, pk, text, text, text, text, ts, text, text, keyText, keyText),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_temp_tables (
			id %s,
			email %s NOT NULL,
			company %s NOT NULL,
			temp_table %s NOT NULL,
			uploaded_file %s NOT NULL
		)`, pk, text, text, text, text),
	}
}
