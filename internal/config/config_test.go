// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func remoteFixture(driver string) RemoteConfig {
	return RemoteConfig{
		Driver:   driver,
		Host:     "db.example.com",
		Port:     5432,
		Database: "tallysync",
		User:     "tally",
		Password: "secret",
	}
}

func TestRemoteConfig_Validate(t *testing.T) {
	if err := remoteFixture("postgres").Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	bad := []RemoteConfig{
		{},
		{Driver: "oracle", Host: "h", Port: 1521, Database: "d", User: "u"},
		{Driver: "postgres", Port: 5432, Database: "d", User: "u"},
		{Driver: "postgres", Host: "h", Database: "d", User: "u"},
		{Driver: "mysql", Host: "h", Port: 3306, User: "u"},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("expected validation failure for %+v", c)
		}
	}
}

func TestRemoteConfig_DSN(t *testing.T) {
	pg, err := remoteFixture("postgres").DSN()
	if err != nil {
		t.Fatalf("postgres DSN failed: %v", err)
	}
	want := "host=db.example.com port=5432 dbname=tallysync user=tally password=secret sslmode=disable"
	if pg != want {
		t.Errorf("postgres DSN = %q, want %q", pg, want)
	}

	my := remoteFixture("mysql")
	my.Port = 3306
	dsn, err := my.DSN()
	if err != nil {
		t.Fatalf("mysql DSN failed: %v", err)
	}
	if dsn != "tally:secret@tcp(db.example.com:3306)/tallysync?parseTime=true&tls=false" {
		t.Errorf("unexpected mysql DSN: %q", dsn)
	}

	my.SSLMode = "require"
	dsn, err = my.DSN()
	if err != nil {
		t.Fatalf("mysql DSN failed: %v", err)
	}
	if !strings.Contains(dsn, "tls=true") {
		t.Errorf("sslmode=require should enable tls, got %q", dsn)
	}

	if _, err := (RemoteConfig{Driver: "postgres"}).DSN(); err == nil {
		t.Error("incomplete config must not render a DSN")
	}
}

func TestLocalConfig_Path(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	l := LocalConfig{DataDir: dir}

	path, err := l.Path()
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	if path != filepath.Join(dir, "tallysync.sqlite") {
		t.Errorf("unexpected path %q", path)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("data directory should have been created: %v", err)
	}

	l.File = "custom.db"
	path, err = l.Path()
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	if filepath.Base(path) != "custom.db" {
		t.Errorf("file override ignored, got %q", path)
	}
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load without a config file failed: %v", err)
	}
	if c.Language != "en" {
		t.Errorf("default language = %q, want en", c.Language)
	}
	if c.Remote.Driver != "postgres" || c.Remote.Port != 5432 {
		t.Errorf("unexpected remote defaults: %+v", c.Remote)
	}
	if c.Local.File != "tallysync.sqlite" {
		t.Errorf("unexpected local defaults: %+v", c.Local)
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tallysync.yaml")
	content := "language: de\nremote:\n  driver: mysql\n  host: db.internal\n  port: 3306\n  database: books\n  user: tally\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	c, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Language != "de" {
		t.Errorf("language = %q, want de", c.Language)
	}
	if c.Remote.Driver != "mysql" || c.Remote.Host != "db.internal" || c.Remote.Port != 3306 {
		t.Errorf("unexpected remote config: %+v", c.Remote)
	}
}

func TestWriteDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".tallysync.yaml")
	if err := WriteDefaultFile(path); err != nil {
		t.Fatalf("WriteDefaultFile failed: %v", err)
	}

	c, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("generated file does not load: %v", err)
	}
	if c.Remote.Driver != "postgres" || c.Local.File != "tallysync.sqlite" {
		t.Errorf("unexpected generated defaults: %+v", c)
	}
}
