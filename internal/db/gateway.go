// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

// This file contains the persistence gateway: the uniform operation surface
// the rest of the application (license service, sync engine, CLI) talks to.
// Every operation takes the tier explicitly, resolves a backend through the
// router, and releases it on every exit path.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tallysync/tallysync/internal/i18n"
	"github.com/tallysync/tallysync/internal/model"
)

// Gateway is the uniform CRUD/query/transaction interface over both
// backends. It is constructed explicitly at startup and injected into the
// services that need it; there is no package-level instance.
type Gateway struct {
	router *Router
}

// NewGateway returns a Gateway over the given router.
func NewGateway(router *Router) *Gateway {
	return &Gateway{router: router}
}

// Close releases the router's long-lived resources.
func (g *Gateway) Close() error {
	return g.router.Close()
}

// TestConnection opens a backend for the tier and round-trips a current
// timestamp query, reporting the outcome in a uniform Result.
func (g *Gateway) TestConnection(ctx context.Context, tier Tier) Result {
	b, err := g.router.Acquire(ctx, tier)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = b.Release() }()

	query := "SELECT NOW()"
	if b.Kind() == "sqlite" {
		query = "SELECT datetime('now')"
	}
	var now any
	if err := b.Bun().QueryRowContext(ctx, query).Scan(&now); err != nil {
		return fail(fmt.Errorf("%s: %w", i18n.T("db.error_connect"), err))
	}
	return ok(fmt.Sprintf("%s Current time: %v", i18n.T("db.connected"), now))
}

// ExecuteQuery runs an ad hoc statement with neutral '?' placeholders,
// translated to the backend's convention. Intended for diagnostics and
// operational tooling.
func (g *Gateway) ExecuteQuery(ctx context.Context, tier Tier, query string, args ...any) QueryResult {
	b, err := g.router.Acquire(ctx, tier)
	if err != nil {
		return QueryResult{Result: fail(err)}
	}
	defer func() { _ = b.Release() }()

	rows, err := b.Bun().QueryContext(ctx, b.Rebind(query), args...)
	if err != nil {
		return QueryResult{Result: fail(fmt.Errorf("%s: %w", i18n.T("db.error_query"), err))}
	}
	defer func() { _ = rows.Close() }()

	out, err := scanRows(rows)
	if err != nil {
		return QueryResult{Result: fail(err)}
	}
	return QueryResult{Result: ok(""), Rows: out, RowCount: len(out)}
}

// GetUserCompanies lists the companies a user belongs to.
func (g *Gateway) GetUserCompanies(ctx context.Context, tier Tier, userEmail string) ([]model.CompanyRef, error) {
	b, err := g.router.Acquire(ctx, tier)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Release() }()

	rows, err := b.Bun().QueryContext(ctx, b.Rebind(`
		SELECT c.company_id, c.company_name
		FROM companies c
		JOIN user_companies uc ON c.company_id = uc.company_id
		WHERE uc.user_email = ?`), userEmail)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var refs []model.CompanyRef
	for rows.Next() {
		var ref model.CompanyRef
		if err := rows.Scan(&ref.CompanyID, &ref.CompanyName); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// GetOrCreateCompany resolves a company by its deterministic slug, creating
// the company row plus an admin membership as one atomic unit when it does
// not exist yet. Calling it twice with the same name returns the identical
// company id both times and performs no write the second time.
func (g *Gateway) GetOrCreateCompany(ctx context.Context, tier Tier, username, companyName string) CompanyResult {
	if strings.TrimSpace(companyName) == "" {
		return CompanyResult{Result: Result{Success: false, Error: i18n.T("db.error_invalid_company")}}
	}
	companyID := Slugify(companyName)

	b, err := g.router.Acquire(ctx, tier)
	if err != nil {
		return CompanyResult{Result: fail(err)}
	}
	defer func() { _ = b.Release() }()

	var existing string
	err = b.Bun().QueryRowContext(ctx, b.Rebind("SELECT company_id FROM companies WHERE company_id = ?"), companyID).Scan(&existing)
	switch {
	case err == nil:
		dbLogf("db: company %q already exists", companyID)
		return CompanyResult{Result: ok(""), CompanyID: companyID}
	case err != sql.ErrNoRows:
		return CompanyResult{Result: fail(err)}
	}

	now := time.Now().UTC()
	tx, err := b.Bun().BeginTx(ctx, nil)
	if err != nil {
		return CompanyResult{Result: fail(err)}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.NewInsert().Model(&CompanyModel{
		CompanyID:   companyID,
		CompanyName: companyName,
		CreatedBy:   username,
		CreatedAt:   now,
	}).Exec(ctx); err != nil {
		// A concurrent caller slugging the same name won the race; creation
		// is idempotent, so report success with the shared id.
		if MapDBError(err) == ErrDuplicate {
			return CompanyResult{Result: ok(""), CompanyID: companyID}
		}
		return CompanyResult{Result: fail(fmt.Errorf("error creating company: %w", err))}
	}
	if _, err := tx.NewInsert().Model(&UserCompanyModel{
		UserEmail: username,
		CompanyID: companyID,
		Role:      "admin",
	}).Exec(ctx); err != nil {
		return CompanyResult{Result: fail(fmt.Errorf("error creating company membership: %w", err))}
	}
	if err := tx.Commit(); err != nil {
		return CompanyResult{Result: fail(err)}
	}
	return CompanyResult{Result: ok(""), CompanyID: companyID}
}

// GetLedgerOptions returns the ledger descriptions recorded for a company.
func (g *Gateway) GetLedgerOptions(ctx context.Context, tier Tier, companyID string) ([]string, error) {
	b, err := g.router.Acquire(ctx, tier)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Release() }()
	return ledgerDescriptions(ctx, b.Bun(), b, companyID)
}

// GetLastSyncTime returns the last successful sync time for the user and
// company as an RFC 3339 timestamp, or the empty string when no sync has
// been recorded. The company is matched case-insensitively by display name.
func (g *Gateway) GetLastSyncTime(ctx context.Context, tier Tier, userEmail, companyName string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(companyName))

	b, err := g.router.Acquire(ctx, tier)
	if err != nil {
		return "", err
	}
	defer func() { _ = b.Release() }()

	var last sql.NullTime
	err = b.Bun().QueryRowContext(ctx, b.Rebind(`
		SELECT uc.last_sync_time
		FROM user_companies uc
		JOIN companies c ON uc.company_id = c.company_id
		WHERE uc.user_email = ? AND lower(c.company_name) = ?`), userEmail, normalized).Scan(&last)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !last.Valid {
		return "", nil
	}
	return last.Time.UTC().Format(time.RFC3339Nano), nil
}

// EnsureUser provisions the identity record on first sign-in. Users are
// immutable after creation, so an existing email is a successful no-op.
func (g *Gateway) EnsureUser(ctx context.Context, tier Tier, cognitoID, username, email string) Result {
	b, err := g.router.Acquire(ctx, tier)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = b.Release() }()

	var id int
	err = b.Bun().QueryRowContext(ctx, b.Rebind("SELECT id FROM users WHERE email = ?"), email).Scan(&id)
	switch {
	case err == nil:
		return ok("")
	case err != sql.ErrNoRows:
		return fail(err)
	}

	now := time.Now().UTC()
	if _, err := b.Bun().NewInsert().Model(&UserModel{
		CognitoID: cognitoID,
		Username:  username,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}).Exec(ctx); err != nil {
		if MapDBError(err) == ErrDuplicate {
			return ok("")
		}
		return fail(err)
	}
	return ok("")
}

// StageTransactions bulk-inserts staging rows for a statement import in one
// transaction and records which upload they came from.
func (g *Gateway) StageTransactions(ctx context.Context, tier Tier, uploadedFile string, txns []model.TemporaryTransaction) Result {
	if len(txns) == 0 {
		return ok("")
	}
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

	for _, t := range txns {
		row := &TemporaryTransactionModel{
			UploadID:        t.UploadID,
			Email:           t.Email,
			Company:         t.Company,
			BankAccount:     t.BankAccount,
			TransactionType: t.TransactionType,
			Description:     t.Description,
			Amount:          t.Amount,
			AssignedLedger:  t.AssignedLedger,
			Status:          t.Status,
		}
		if !t.TransactionDate.IsZero() {
			row.TransactionDate = sql.NullTime{Time: t.TransactionDate, Valid: true}
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fail(err)
		}
	}
	first := txns[0]
	if _, err := tx.NewInsert().Model(&UserTempTableModel{
		Email:        first.Email,
		Company:      first.Company,
		TempTable:    "temporary_transactions",
		UploadedFile: uploadedFile,
	}).Exec(ctx); err != nil {
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return fail(err)
	}
	return ok("")
}

// scanRows materializes a result set into column-keyed maps for the ad hoc
// query surface.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			v := values[i]
			// Drivers commonly hand back []byte for text columns.
			if bs, okb := v.([]byte); okb {
				v = string(bs)
			}
			row[c] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
