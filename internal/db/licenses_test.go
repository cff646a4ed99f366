// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tallysync/tallysync/internal/model"
)

func testLicense(userEmail string) model.License {
	now := time.Now().UTC()
	return model.License{
		LicenseKey: "SLV-test-key",
		UserID:     userEmail,
		ValidTill:  now.AddDate(1, 0, 0),
		Status:     "ACTIVE",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestGetLicense_AbsenceIsNotAnError(t *testing.T) {
	gw := newTestGateway(t)

	lic, err := gw.GetLicense(context.Background(), TierSilver, "nobody@example.com")
	if err != nil {
		t.Fatalf("GetLicense failed: %v", err)
	}
	if lic != nil {
		t.Errorf("expected nil for missing license, got %+v", lic)
	}
}

func TestInsertLicense_Roundtrip(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()
	user := "alice@example.com"

	if err := gw.InsertLicense(ctx, TierSilver, testLicense(user)); err != nil {
		t.Fatalf("InsertLicense failed: %v", err)
	}

	lic, err := gw.GetLicense(ctx, TierSilver, user)
	if err != nil {
		t.Fatalf("GetLicense failed: %v", err)
	}
	if lic == nil {
		t.Fatal("expected a license row")
	}
	if lic.LicenseKey != "SLV-test-key" || lic.Status != "ACTIVE" || lic.UserID != user {
		t.Errorf("unexpected license: %+v", lic)
	}
	if lic.HardwareID != "" || lic.DetectedHardwareID != "" {
		t.Errorf("fresh license must have no hardware binding, got %+v", lic)
	}
}

func TestInsertLicense_DuplicateUser(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()
	user := "alice@example.com"

	if err := gw.InsertLicense(ctx, TierSilver, testLicense(user)); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := gw.InsertLicense(ctx, TierSilver, testLicense(user)); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second insert error = %v, want ErrDuplicate", err)
	}
}

func TestLicenseHardwareColumns(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()
	user := "alice@example.com"

	if err := gw.InsertLicense(ctx, TierSilver, testLicense(user)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := gw.SetLicenseHardware(ctx, TierSilver, user, "hw-aaa"); err != nil {
		t.Fatalf("SetLicenseHardware failed: %v", err)
	}
	if err := gw.SetDetectedHardware(ctx, TierSilver, user, "hw-bbb"); err != nil {
		t.Fatalf("SetDetectedHardware failed: %v", err)
	}

	lic, err := gw.GetLicense(ctx, TierSilver, user)
	if err != nil || lic == nil {
		t.Fatalf("GetLicense failed: %v %v", lic, err)
	}
	if lic.HardwareID != "hw-aaa" {
		t.Errorf("HardwareID = %q, want hw-aaa", lic.HardwareID)
	}
	if lic.DetectedHardwareID != "hw-bbb" {
		t.Errorf("DetectedHardwareID = %q, want hw-bbb", lic.DetectedHardwareID)
	}

	// Clearing the binding leaves the audit column alone.
	if err := gw.ClearLicenseHardware(ctx, TierSilver, user); err != nil {
		t.Fatalf("ClearLicenseHardware failed: %v", err)
	}
	lic, err = gw.GetLicense(ctx, TierSilver, user)
	if err != nil || lic == nil {
		t.Fatalf("GetLicense after clear failed: %v %v", lic, err)
	}
	if lic.HardwareID != "" {
		t.Errorf("binding should be cleared, got %q", lic.HardwareID)
	}
	if lic.DetectedHardwareID != "hw-bbb" {
		t.Errorf("audit column must survive a clear, got %q", lic.DetectedHardwareID)
	}
}
