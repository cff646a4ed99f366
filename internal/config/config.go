// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads and validates the Tallysync configuration. Settings
// come from a YAML file, environment variables prefixed with TALLYSYNC, and
// CLI flags, in ascending order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/viper"
)

// Config is the root configuration for the application.
type Config struct {
	Language string       `mapstructure:"language" yaml:"language"`
	Debug    bool         `mapstructure:"debug" yaml:"debug"`
	Remote   RemoteConfig `mapstructure:"remote" yaml:"remote"`
	Local    LocalConfig  `mapstructure:"local" yaml:"local"`
}

// RemoteConfig describes the shared relational backend used by GOLD and
// TRIAL tiers. All fields except SSLMode are required; missing values are a
// fatal configuration error at startup, not something to retry.
type RemoteConfig struct {
	Driver   string `mapstructure:"driver" yaml:"driver"` // "postgres" or "mysql"
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// LocalConfig describes the embedded backend used by the SILVER tier.
// DataDir defaults to a tallysync directory under the user config dir and
// is created on first use.
type LocalConfig struct {
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	File    string `mapstructure:"file" yaml:"file"`
}

// Validate checks that the remote backend is fully configured.
func (r RemoteConfig) Validate() error {
	switch r.Driver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("remote.driver must be \"postgres\" or \"mysql\", got %q", r.Driver)
	}
	if r.Host == "" || r.Database == "" || r.User == "" {
		return fmt.Errorf("remote backend requires host, database and user (got host=%q database=%q user=%q)", r.Host, r.Database, r.User)
	}
	if r.Port <= 0 {
		return fmt.Errorf("remote.port must be positive, got %d", r.Port)
	}
	return nil
}

// DSN renders the driver-specific connection string for the remote backend.
func (r RemoteConfig) DSN() (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	switch r.Driver {
	case "postgres":
		sslmode := r.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
			r.Host, r.Port, r.Database, r.User, r.Password, sslmode), nil
	case "mysql":
		tls := "false"
		if r.SSLMode != "" && r.SSLMode != "disable" {
			tls = "true"
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=%s",
			r.User, r.Password, r.Host, r.Port, r.Database, tls), nil
	default:
		return "", fmt.Errorf("unsupported remote driver: %q", r.Driver)
	}
}

// Path resolves the embedded database file, creating the data directory if
// it does not exist yet.
func (l LocalConfig) Path() (string, error) {
	dir := l.DataDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not resolve user config directory: %w", err)
		}
		dir = filepath.Join(base, "tallysync")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create data directory %s: %w", dir, err)
	}
	file := l.File
	if file == "" {
		file = "tallysync.sqlite"
	}
	return filepath.Join(dir, file), nil
}

// SetDefaults registers the default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("language", "en")
	v.SetDefault("debug", false)
	v.SetDefault("remote.driver", "postgres")
	v.SetDefault("remote.port", 5432)
	v.SetDefault("remote.sslmode", "disable")
	v.SetDefault("local.file", "tallysync.sqlite")
}

// Load reads the configuration from file and environment into a Config.
// A missing config file is not an error; everything has a default or can
// come from the environment.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	var c Config
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".tallysync")
	}

	v.SetEnvPrefix("TALLYSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}

// WriteDefaultFile writes a commented starter configuration to path so the
// available settings are discoverable. Failure to write is not fatal; the
// caller may ignore the error and run on in-memory defaults.
func WriteDefaultFile(path string) error {
	c := Config{
		Language: "en",
		Remote: RemoteConfig{
			Driver:  "postgres",
			Port:    5432,
			SSLMode: "disable",
		},
		Local: LocalConfig{File: "tallysync.sqlite"},
	}
	data, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}
	header := []byte("# Tallysync configuration file.\n# Remote backend (GOLD/TRIAL tiers) and local backend (SILVER tier).\n\n")
	return os.WriteFile(path, append(header, data...), 0o600)
}
