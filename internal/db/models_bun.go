// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"database/sql"
	"time"

	"github.com/uptrace/bun"
)

// UserModel maps the `users` table for Bun queries.
type UserModel struct {
	bun.BaseModel `bun:"table:users"`
	ID            int       `bun:"id,pk,autoincrement"`
	CognitoID     string    `bun:"cognito_id"`
	Username      string    `bun:"username"`
	Email         string    `bun:"email"`
	CreatedAt     time.Time `bun:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at"`
}

// CompanyModel maps the `companies` table.
type CompanyModel struct {
	bun.BaseModel `bun:"table:companies"`
	CompanyID     string    `bun:"company_id,pk"`
	CompanyName   string    `bun:"company_name"`
	CreatedBy     string    `bun:"created_by"`
	CreatedAt     time.Time `bun:"created_at"`
}

// UserCompanyModel maps the `user_companies` join table.
type UserCompanyModel struct {
	bun.BaseModel `bun:"table:user_companies"`
	ID            int          `bun:"id,pk,autoincrement"`
	UserEmail     string       `bun:"user_email"`
	CompanyID     string       `bun:"company_id"`
	Role          string       `bun:"role"`
	LastSyncTime  sql.NullTime `bun:"last_sync_time"`
}

// LedgerModel maps the `ledgers` table.
type LedgerModel struct {
	bun.BaseModel  `bun:"table:ledgers"`
	LedgerID       int       `bun:"ledger_id,pk,autoincrement"`
	CompanyID      string    `bun:"company_id"`
	Description    string    `bun:"description"`
	ClosingBalance float64   `bun:"closing_balance"`
	Timestamp      time.Time `bun:"timestamp"`
	ExtraData      string    `bun:"extra_data"`
}

// LicenseModel maps the `licenses` table. Hardware columns are nullable:
// NULL hardware_id means the license is not yet bound to a machine.
type LicenseModel struct {
	bun.BaseModel      `bun:"table:licenses"`
	ID                 int            `bun:"id,pk,autoincrement"`
	LicenseKey         string         `bun:"license_key"`
	UserID             string         `bun:"user_id"`
	ValidTill          time.Time      `bun:"valid_till"`
	Status             string         `bun:"status"`
	HardwareID         sql.NullString `bun:"hardware_id"`
	DetectedHardwareID sql.NullString `bun:"detected_hardware_id"`
	CreatedAt          time.Time      `bun:"created_at"`
	UpdatedAt          time.Time      `bun:"updated_at"`
}

// TemporaryTransactionModel maps the `temporary_transactions` staging table.
type TemporaryTransactionModel struct {
	bun.BaseModel   `bun:"table:temporary_transactions"`
	ID              int          `bun:"id,pk,autoincrement"`
	UploadID        string       `bun:"upload_id"`
	Email           string       `bun:"email"`
	Company         string       `bun:"company"`
	BankAccount     string       `bun:"bank_account"`
	TransactionDate sql.NullTime `bun:"transaction_date"`
	TransactionType string       `bun:"transaction_type"`
	Description     string       `bun:"description"`
	Amount          float64      `bun:"amount"`
	AssignedLedger  string       `bun:"assigned_ledger"`
	Status          string       `bun:"status"`
}

// UserTempTableModel maps the `user_temp_tables` table.
type UserTempTableModel struct {
	bun.BaseModel `bun:"table:user_temp_tables"`
	ID            int    `bun:"id,pk,autoincrement"`
	Email         string `bun:"email"`
	Company       string `bun:"company"`
	TempTable     string `bun:"temp_table"`
	UploadedFile  string `bun:"uploaded_file"`
}
