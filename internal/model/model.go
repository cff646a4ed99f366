// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model defines the core domain entities shared across Tallysync.
package model

import (
	"fmt"
	"time"
)

// User is an identity record created on first provisioning. It is immutable
// thereafter except for timestamps.
type User struct {
	ID        int
	CognitoID string
	Username  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Company is an accounting entity owned by the user who first uploaded its
// ledgers. CompanyID is a deterministic slug of CompanyName, which makes
// creation idempotent without a prior lookup key.
type Company struct {
	CompanyID   string
	CompanyName string
	CreatedBy   string
	CreatedAt   time.Time
}

// CompanyRef is the projection returned when listing a user's companies.
type CompanyRef struct {
	CompanyID   string
	CompanyName string
}

// UserCompany joins a user to a company. LastSyncTime is monotonically
// non-decreasing per (UserEmail, CompanyID) pair.
type UserCompany struct {
	ID           int
	UserEmail    string
	CompanyID    string
	Role         string
	LastSyncTime time.Time
}

// Ledger is a named financial account belonging to a company. Description is
// unique per company under case-insensitive comparison; the uniqueness is
// enforced at sync time, not by a backend constraint.
type Ledger struct {
	LedgerID       int
	CompanyID      string
	Description    string
	ClosingBalance float64
	Timestamp      time.Time
	ExtraData      string
}

// LedgerRecord is one incoming record of a sync batch. The accounting
// system exports records with either capitalization of the name and balance
// keys; every other key rides along as opaque extra data.
type LedgerRecord map[string]any

// License binds a user's license to exactly one physical machine. HardwareID
// is written at most once automatically; DetectedHardwareID records every
// subsequent mismatch for audit without disturbing HardwareID.
type License struct {
	ID                 int
	LicenseKey         string
	UserID             string
	ValidTill          time.Time
	Status             string
	HardwareID         string
	DetectedHardwareID string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// String returns the key/user representation without exposing hardware ids.
func (l License) String() string {
	return fmt.Sprintf("%s (%s, %s)", l.LicenseKey, l.UserID, l.Status)
}

// TemporaryTransaction is a staging row for bulk bank-statement imports.
type TemporaryTransaction struct {
	ID              int
	UploadID        string
	Email           string
	Company         string
	BankAccount     string
	TransactionDate time.Time
	TransactionType string
	Description     string
	Amount          float64
	AssignedLedger  string
	Status          string
}

// UserTempTable tracks which staging table holds a user's uploaded file.
type UserTempTable struct {
	ID           int
	Email        string
	Company      string
	TempTable    string
	UploadedFile string
}
