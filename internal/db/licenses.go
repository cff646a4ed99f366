// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

// This file contains the license persistence operations. The verification
// state machine itself lives in the license package; everything here is
// plain row access so the license service never talks to a backend directly.
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/tallysync/tallysync/internal/model"
)

// GetLicense fetches the license row for a user, or nil when none exists.
// Absence is a state, not an error.
func (g *Gateway) GetLicense(ctx context.Context, tier Tier, userEmail string) (*model.License, error) {
	b, err := g.router.Acquire(ctx, tier)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Release() }()

	var m LicenseModel
	err = b.Bun().QueryRowContext(ctx, b.Rebind(`
		SELECT id, license_key, user_id, valid_till, status, hardware_id, detected_hardware_id, created_at, updated_at
		FROM licenses WHERE user_id = ?`), userEmail).Scan(
		&m.ID, &m.LicenseKey, &m.UserID, &m.ValidTill, &m.Status,
		&m.HardwareID, &m.DetectedHardwareID, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lic := model.License{
		ID:         m.ID,
		LicenseKey: m.LicenseKey,
		UserID:     m.UserID,
		ValidTill:  m.ValidTill,
		Status:     m.Status,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.HardwareID.Valid {
		lic.HardwareID = m.HardwareID.String
	}
	if m.DetectedHardwareID.Valid {
		lic.DetectedHardwareID = m.DetectedHardwareID.String
	}
	return &lic, nil
}

// InsertLicense creates a new license row.
func (g *Gateway) InsertLicense(ctx context.Context, tier Tier, lic model.License) error {
	b, err := g.router.Acquire(ctx, tier)
	if err != nil {
		return err
	}
	defer func() { _ = b.Release() }()

	m := &LicenseModel{
		LicenseKey: lic.LicenseKey,
		UserID:     lic.UserID,
		ValidTill:  lic.ValidTill,
		Status:     lic.Status,
		CreatedAt:  lic.CreatedAt,
		UpdatedAt:  lic.UpdatedAt,
	}
	if lic.HardwareID != "" {
		m.HardwareID = sql.NullString{String: lic.HardwareID, Valid: true}
	}
	if lic.DetectedHardwareID != "" {
		m.DetectedHardwareID = sql.NullString{String: lic.DetectedHardwareID, Valid: true}
	}
	_, err = b.Bun().NewInsert().Model(m).Exec(ctx)
	return MapDBError(err)
}

// SetLicenseHardware stores the registered hardware id for a user.
func (g *Gateway) SetLicenseHardware(ctx context.Context, tier Tier, userEmail, hardwareID string) error {
	return g.updateLicense(ctx, tier, "UPDATE licenses SET hardware_id = ?, updated_at = ? WHERE user_id = ?", hardwareID, userEmail)
}

// SetDetectedHardware records the hardware id observed at verification time
// without touching the registered binding. This is the audit trail for
// mismatches.
func (g *Gateway) SetDetectedHardware(ctx context.Context, tier Tier, userEmail, hardwareID string) error {
	return g.updateLicense(ctx, tier, "UPDATE licenses SET detected_hardware_id = ?, updated_at = ? WHERE user_id = ?", hardwareID, userEmail)
}

// ClearLicenseHardware removes the hardware binding so the next successful
// verification re-registers the calling machine. Reserved for the
// privileged transfer path.
func (g *Gateway) ClearLicenseHardware(ctx context.Context, tier Tier, userEmail string) error {
	b, err := g.router.Acquire(ctx, tier)
	if err != nil {
		return err
	}
	defer func() { _ = b.Release() }()

	_, err = b.Bun().ExecContext(ctx, b.Rebind(
		"UPDATE licenses SET hardware_id = NULL, updated_at = ? WHERE user_id = ?"),
		time.Now().UTC(), userEmail)
	return err
}

func (g *Gateway) updateLicense(ctx context.Context, tier Tier, query, value, userEmail string) error {
	b, err := g.router.Acquire(ctx, tier)
	if err != nil {
		return err
	}
	defer func() { _ = b.Release() }()

	_, err = b.Bun().ExecContext(ctx, b.Rebind(query), value, time.Now().UTC(), userEmail)
	return err
}
