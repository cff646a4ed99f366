// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

// Package license binds a software license to exactly one physical machine
// and audits mismatches. It is built entirely on the persistence gateway
// and never talks to a backend directly.
package license

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallysync/tallysync/internal/db"
	"github.com/tallysync/tallysync/internal/i18n"
	"github.com/tallysync/tallysync/internal/logging"
	"github.com/tallysync/tallysync/internal/model"
)

// VerifyResult is the caller-facing outcome of a verification. Failures are
// always a denial with a message, never a raised fault.
type VerifyResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// Service implements the license verification state machine and the
// provisioning and administrative operations around it.
type Service struct {
	gw *db.Gateway

	// hardwareID is injectable so tests can simulate different machines.
	hardwareID func() (string, error)
}

// NewService returns a Service over the given gateway.
func NewService(gw *db.Gateway) *Service {
	return &Service{gw: gw, hardwareID: HardwareID}
}

// Verify runs the binding state machine for a user:
//
//  1. no license row        -> invalid, nothing written
//  2. row, no hardware id   -> valid, current id registered (first use)
//  3. row, id matches       -> valid
//  4. row, id differs       -> invalid, mismatch recorded for audit only
//  5. any failure           -> invalid with message, no partial writes
//
// The binding is one-way: once registered, ordinary verification never
// overwrites hardware_id. Only the explicit ResetHardware path clears it.
func (s *Service) Verify(ctx context.Context, tier db.Tier, userEmail string) VerifyResult {
	current, err := s.hardwareID()
	if err != nil {
		logging.Errorf("license: hardware id acquisition failed: %v", err)
		return VerifyResult{Valid: false, Message: i18n.T("license.verify_error")}
	}

	lic, err := s.gw.GetLicense(ctx, tier, userEmail)
	if err != nil {
		logging.Errorf("license: lookup failed for %s: %v", userEmail, err)
		return VerifyResult{Valid: false, Message: i18n.T("license.verify_error")}
	}
	if lic == nil {
		logging.Warnf("license: no record found for user %s", userEmail)
		return VerifyResult{Valid: false, Message: i18n.T("license.no_record")}
	}

	if lic.HardwareID == "" {
		if err := s.gw.SetLicenseHardware(ctx, tier, userEmail, current); err != nil {
			logging.Errorf("license: first registration failed for %s: %v", userEmail, err)
			return VerifyResult{Valid: false, Message: i18n.T("license.verify_error")}
		}
		logging.Infof("license: registered hardware id for %s", userEmail)
		return VerifyResult{Valid: true, Message: i18n.T("license.registered")}
	}

	if lic.HardwareID != current {
		logging.Warnf("license: hardware mismatch for %s", userEmail)
		if err := s.gw.SetDetectedHardware(ctx, tier, userEmail, current); err != nil {
			logging.Errorf("license: recording detected hardware failed for %s: %v", userEmail, err)
			return VerifyResult{Valid: false, Message: i18n.T("license.verify_error")}
		}
		return VerifyResult{Valid: false, Message: i18n.T("license.mismatch")}
	}

	return VerifyResult{Valid: true, Message: i18n.T("license.verified")}
}

// CreateLicenseRecord provisions a license with a one-year validity window
// and active status. Provisioning is the only path that creates rows;
// Verify never auto-creates.
func (s *Service) CreateLicenseRecord(ctx context.Context, tier db.Tier, userEmail, hardwareID string) db.Result {
	now := time.Now().UTC()
	lic := model.License{
		LicenseKey: fmt.Sprintf("SLV-%s", uuid.NewString()),
		UserID:     userEmail,
		ValidTill:  now.AddDate(1, 0, 0),
		Status:     "ACTIVE",
		HardwareID: hardwareID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.gw.InsertLicense(ctx, tier, lic); err != nil {
		return db.Result{Success: false, Error: err.Error()}
	}
	return db.Result{Success: true, Message: i18n.T("license.created")}
}

// UpdateLicenseHardware directly sets the registered hardware id. Used by
// provisioning and administrative tooling, never by Verify after first
// registration.
func (s *Service) UpdateLicenseHardware(ctx context.Context, tier db.Tier, userEmail, hardwareID string) db.Result {
	if err := s.gw.SetLicenseHardware(ctx, tier, userEmail, hardwareID); err != nil {
		return db.Result{Success: false, Error: err.Error()}
	}
	return db.Result{Success: true}
}

// UpdateDetectedHardware directly sets the audit column.
func (s *Service) UpdateDetectedHardware(ctx context.Context, tier db.Tier, userEmail, hardwareID string) db.Result {
	if err := s.gw.SetDetectedHardware(ctx, tier, userEmail, hardwareID); err != nil {
		return db.Result{Success: false, Error: err.Error()}
	}
	return db.Result{Success: true}
}

// GetLicenseHardware returns the registered and last-detected hardware ids.
// Both are empty when no license row exists.
func (s *Service) GetLicenseHardware(ctx context.Context, tier db.Tier, userEmail string) (hardwareID, detected string, err error) {
	lic, err := s.gw.GetLicense(ctx, tier, userEmail)
	if err != nil || lic == nil {
		return "", "", err
	}
	return lic.HardwareID, lic.DetectedHardwareID, nil
}

// ResetHardware clears the machine binding so the next verification
// re-registers the calling machine. This is the privileged transfer path;
// it is exposed only through administrative tooling and is never invoked
// by Verify.
func (s *Service) ResetHardware(ctx context.Context, tier db.Tier, userEmail string) db.Result {
	lic, err := s.gw.GetLicense(ctx, tier, userEmail)
	if err != nil {
		return db.Result{Success: false, Error: err.Error()}
	}
	if lic == nil {
		return db.Result{Success: false, Error: i18n.T("license.no_record")}
	}
	if err := s.gw.ClearLicenseHardware(ctx, tier, userEmail); err != nil {
		return db.Result{Success: false, Error: err.Error()}
	}
	logging.Infof("license: hardware binding cleared for %s", userEmail)
	return db.Result{Success: true, Message: i18n.T("license.reset")}
}
