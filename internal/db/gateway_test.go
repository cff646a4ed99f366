// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"strings"
	"testing"

	"github.com/tallysync/tallysync/internal/model"
)

// countRows is a test convenience over the ad hoc query surface.
func countRows(t *testing.T, gw *Gateway, table string) int {
	t.Helper()
	res := gw.ExecuteQuery(context.Background(), TierSilver, "SELECT COUNT(*) AS n FROM "+table)
	if !res.Success {
		t.Fatalf("counting %s failed: %s", table, res.Error)
	}
	if res.RowCount != 1 {
		t.Fatalf("expected one count row for %s, got %d", table, res.RowCount)
	}
	switch n := res.Rows[0]["n"].(type) {
	case int64:
		return int(n)
	case string:
		t.Fatalf("unexpected string count for %s: %q", table, n)
	}
	t.Fatalf("unexpected count type %T for %s", res.Rows[0]["n"], table)
	return 0
}

func TestTestConnection_Sqlite(t *testing.T) {
	gw := newTestGateway(t)

	res := gw.TestConnection(context.Background(), TierSilver)
	if !res.Success {
		t.Fatalf("TestConnection failed: %s", res.Error)
	}
	if !strings.Contains(res.Message, "Current time:") {
		t.Errorf("expected timestamp in message, got %q", res.Message)
	}
}

func TestAcquire_UnsupportedTier(t *testing.T) {
	gw := newTestGateway(t)

	res := gw.TestConnection(context.Background(), Tier("PLATINUM"))
	if res.Success {
		t.Fatal("unknown tier must not connect anywhere")
	}
	if !strings.Contains(res.Error, "unsupported") {
		t.Errorf("expected unsupported-tier error, got %q", res.Error)
	}
}

func TestSchemaBootstrap_Idempotent(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	// The first acquisition bootstraps the schema. A second gateway over the
	// same database must come up cleanly against the existing tables.
	if res := gw.TestConnection(ctx, TierSilver); !res.Success {
		t.Fatalf("first bootstrap failed: %s", res.Error)
	}
	gw2 := newTestGateway(t)
	if res := gw2.TestConnection(ctx, TierSilver); !res.Success {
		t.Fatalf("second bootstrap failed: %s", res.Error)
	}

	for _, table := range []string{
		"users", "companies", "user_companies", "ledgers",
		"licenses", "temporary_transactions", "user_temp_tables",
	} {
		if got := countRows(t, gw, table); got != 0 {
			t.Errorf("table %s should exist and be empty, got %d rows", table, got)
		}
	}
}

func TestGetOrCreateCompany_Idempotent(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	first := gw.GetOrCreateCompany(ctx, TierSilver, "alice@example.com", "Acme Co")
	if !first.Success {
		t.Fatalf("create failed: %s", first.Error)
	}
	if first.CompanyID != "acme_co" {
		t.Errorf("CompanyID = %q, want %q", first.CompanyID, "acme_co")
	}

	second := gw.GetOrCreateCompany(ctx, TierSilver, "alice@example.com", "Acme Co")
	if !second.Success || second.CompanyID != first.CompanyID {
		t.Errorf("second call must return the same id, got %+v", second)
	}

	if n := countRows(t, gw, "companies"); n != 1 {
		t.Errorf("expected exactly one company row, got %d", n)
	}
	if n := countRows(t, gw, "user_companies"); n != 1 {
		t.Errorf("expected exactly one membership row, got %d", n)
	}
}

func TestGetOrCreateCompany_RejectsBlankName(t *testing.T) {
	gw := newTestGateway(t)

	for _, name := range []string{"", "   ", "\t\n"} {
		res := gw.GetOrCreateCompany(context.Background(), TierSilver, "alice@example.com", name)
		if res.Success {
			t.Errorf("blank name %q must be rejected", name)
		}
		if res.Error == "" {
			t.Errorf("rejection for %q must carry a message", name)
		}
	}
}

func TestGetUserCompanies(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	for _, name := range []string{"Acme Co", "Globex Ltd"} {
		if res := gw.GetOrCreateCompany(ctx, TierSilver, "alice@example.com", name); !res.Success {
			t.Fatalf("creating %q failed: %s", name, res.Error)
		}
	}

	refs, err := gw.GetUserCompanies(ctx, TierSilver, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserCompanies failed: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 companies, got %d", len(refs))
	}
	byID := map[string]string{}
	for _, ref := range refs {
		byID[ref.CompanyID] = ref.CompanyName
	}
	if byID["acme_co"] != "Acme Co" || byID["globex_ltd"] != "Globex Ltd" {
		t.Errorf("unexpected company set: %v", byID)
	}

	none, err := gw.GetUserCompanies(ctx, TierSilver, "nobody@example.com")
	if err != nil {
		t.Fatalf("GetUserCompanies for unknown user failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("unknown user should have no companies, got %v", none)
	}
}

func TestEnsureUser_Idempotent(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	if res := gw.EnsureUser(ctx, TierSilver, "cog-123", "alice", "alice@example.com"); !res.Success {
		t.Fatalf("first EnsureUser failed: %s", res.Error)
	}
	if res := gw.EnsureUser(ctx, TierSilver, "cog-123", "alice", "alice@example.com"); !res.Success {
		t.Fatalf("repeated EnsureUser must succeed: %s", res.Error)
	}
	if n := countRows(t, gw, "users"); n != 1 {
		t.Errorf("expected exactly one user row, got %d", n)
	}
}

func TestStageTransactions(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	txns := []model.TemporaryTransaction{
		{UploadID: "up-1", Email: "alice@example.com", Company: "acme_co", BankAccount: "HDFC", TransactionType: "debit", Description: "Office rent", Amount: 1200.50, Status: "pending"},
		{UploadID: "up-1", Email: "alice@example.com", Company: "acme_co", BankAccount: "HDFC", TransactionType: "credit", Description: "Client payment", Amount: 4000, Status: "pending"},
	}
	if res := gw.StageTransactions(ctx, TierSilver, "statement_march.xlsx", txns); !res.Success {
		t.Fatalf("StageTransactions failed: %s", res.Error)
	}

	if n := countRows(t, gw, "temporary_transactions"); n != 2 {
		t.Errorf("expected 2 staged transactions, got %d", n)
	}
	if n := countRows(t, gw, "user_temp_tables"); n != 1 {
		t.Errorf("expected 1 upload record, got %d", n)
	}

	// Empty batches are a no-op, not an error.
	if res := gw.StageTransactions(ctx, TierSilver, "empty.xlsx", nil); !res.Success {
		t.Errorf("empty batch should succeed: %s", res.Error)
	}
	if n := countRows(t, gw, "user_temp_tables"); n != 1 {
		t.Errorf("empty batch must not record an upload, got %d rows", n)
	}
}

func TestExecuteQuery_Parameters(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	if res := gw.GetOrCreateCompany(ctx, TierSilver, "alice@example.com", "Acme Co"); !res.Success {
		t.Fatalf("setup failed: %s", res.Error)
	}

	res := gw.ExecuteQuery(ctx, TierSilver, "SELECT company_name FROM companies WHERE company_id = ?", "acme_co")
	if !res.Success {
		t.Fatalf("ExecuteQuery failed: %s", res.Error)
	}
	if res.RowCount != 1 || res.Rows[0]["company_name"] != "Acme Co" {
		t.Errorf("unexpected result: %+v", res.Rows)
	}

	bad := gw.ExecuteQuery(ctx, TierSilver, "SELECT nope FROM missing_table")
	if bad.Success {
		t.Error("invalid SQL must fail")
	}
}

func TestGetLastSyncTime_NoRecord(t *testing.T) {
	gw := newTestGateway(t)

	got, err := gw.GetLastSyncTime(context.Background(), TierSilver, "alice@example.com", "Acme Co")
	if err != nil {
		t.Fatalf("GetLastSyncTime failed: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty string before any sync, got %q", got)
	}
}
