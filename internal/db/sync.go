// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

// This file contains the ledger sync engine: dedup-safe, transactional
// upload of ledger batches per company. Repeated identical calls never
// duplicate rows and always advance the last sync time.
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/tallysync/tallysync/internal/i18n"
	"github.com/tallysync/tallysync/internal/model"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Slugify derives the deterministic company id from a display name:
// lowercase, with every whitespace run collapsed to a single underscore.
// Surrounding whitespace is trimmed so accidental padding cannot mint a
// second id for the same company.
func Slugify(name string) string {
	return strings.ToLower(whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "_"))
}

// ledgerNameSentinel marks records whose source had no usable account name;
// such records are never synced.
const ledgerNameSentinel = "N/A"

// recordName extracts the account name of an incoming record. The
// accounting system exports either "Name" or "LEDGERNAME" depending on the
// report version.
func recordName(r model.LedgerRecord) string {
	for _, key := range []string{"Name", "LEDGERNAME"} {
		if v, found := r[key]; found {
			if s, isString := v.(string); isString && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ledgerNameSentinel
}

// recordBalance extracts the closing balance, tolerating the string and
// numeric spellings the export produces. Unparsable input defaults to 0.0
// rather than failing the record; partial-quality input must not block an
// otherwise-valid sync.
func recordBalance(r model.LedgerRecord) float64 {
	for _, key := range []string{"ClosingBalance", "CLOSINGBALANCE"} {
		v, found := r[key]
		if !found {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f
			}
		}
	}
	return 0.0
}

// recordExtra packages every field except the name and balance keys into an
// opaque JSON payload.
func recordExtra(r model.LedgerRecord) (string, error) {
	extra := make(map[string]any, len(r))
	for k, v := range r {
		switch k {
		case "Name", "LEDGERNAME", "ClosingBalance", "CLOSINGBALANCE":
		default:
			extra[k] = v
		}
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UploadLedgers resolves (or creates) the company and synchronizes the
// incoming batch into it. Inside one transaction it re-reads the existing
// descriptions as a case-insensitive set, filters the batch down to genuinely
// new records, inserts them, and advances last_sync_time. The re-read happens
// within the transaction rather than trusting a stale prior read, so an
// externally retried call is still safe. A batch with nothing new is still a
// successful sync and still advances last_sync_time.
func (g *Gateway) UploadLedgers(ctx context.Context, tier Tier, username, companyName string, ledgers []model.LedgerRecord) Result {
	company := g.GetOrCreateCompany(ctx, tier, username, companyName)
	if !company.Success {
		return company.Result
	}
	companyID := company.CompanyID

	b, err := g.router.Acquire(ctx, tier)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = b.Release() }()

	tx, err := b.Bun().BeginTx(ctx, nil)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := ledgerDescriptions(ctx, tx, b, companyID)
	if err != nil {
		return fail(err)
	}
	seen := make(map[string]bool, len(existing))
	for _, d := range existing {
		seen[strings.ToLower(strings.TrimSpace(d))] = true
	}

	now := time.Now().UTC()
	inserted := 0
	for _, record := range ledgers {
		name := recordName(record)
		if name == ledgerNameSentinel || seen[strings.ToLower(name)] {
			continue
		}
		extra, err := recordExtra(record)
		if err != nil {
			return fail(fmt.Errorf("failed to encode ledger extra data: %w", err))
		}
		if _, err := tx.NewInsert().Model(&LedgerModel{
			CompanyID:      companyID,
			Description:    name,
			ClosingBalance: recordBalance(record),
			Timestamp:      now,
			ExtraData:      extra,
		}).Exec(ctx); err != nil {
			return fail(fmt.Errorf("failed to insert ledger %q: %w", name, err))
		}
		seen[strings.ToLower(name)] = true
		inserted++
	}

	// A no-op sync is still a successful sync: the sync time advances
	// unconditionally, and strictly, because the value is generated here
	// rather than delegated to the backend clock's second granularity.
	if _, err := tx.ExecContext(ctx, b.Rebind(
		"UPDATE user_companies SET last_sync_time = ? WHERE user_email = ? AND company_id = ?"),
		now, username, companyID); err != nil {
		return fail(fmt.Errorf("failed to advance last sync time: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fail(err)
	}
	dbLogf("db: synced %d/%d ledgers for company %q", inserted, len(ledgers), companyID)
	return ok(i18n.T("sync.ok"))
}

// ledgerDescriptions reads the descriptions recorded for a company, usable
// both on a live handle and inside a transaction.
func ledgerDescriptions(ctx context.Context, idb bun.IDB, b Backend, companyID string) ([]string, error) {
	rows, err := idb.QueryContext(ctx, b.Rebind("SELECT description FROM ledgers WHERE company_id = ?"), companyID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var descriptions []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		descriptions = append(descriptions, d)
	}
	return descriptions, rows.Err()
}
