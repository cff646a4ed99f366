// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface for Tallysync using Cobra.
// The CLI is operational tooling over the persistence gateway and license
// service; it carries no logic of its own beyond argument handling and
// result rendering.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tallysync/tallysync/internal/config"
	"github.com/tallysync/tallysync/internal/db"
	"github.com/tallysync/tallysync/internal/i18n"
	"github.com/tallysync/tallysync/internal/license"
	"github.com/tallysync/tallysync/internal/logging"
	"github.com/tallysync/tallysync/internal/model"
)

var version = "dev" // this will be set by the linker

var (
	cfgFile  string
	tierFlag string

	cfg     config.Config
	tier    db.Tier
	gateway *db.Gateway
	svc     *license.Service
)

// remoteCallTimeout bounds every CLI-initiated backend operation; the
// remote backend performs a network round trip per call.
const remoteCallTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), remoteCallTimeout)
}

// newRootCmd creates and configures the root cobra command. Fresh instances
// are also used for isolated testing.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tallysync",
		Short: "Tallysync routes accounting data to tier-specific backends and manages machine-bound licenses.",
		Long: `Tallysync synchronizes ledger data from a local accounting system into a
tier-routed store: GOLD and TRIAL users share a remote relational backend,
SILVER users keep an embedded local database. It also verifies that a
license stays bound to the machine it was first used on.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(viper.New(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			i18n.Init(cfg.Language)
			logging.SetDebug(cfg.Debug)
			db.SetDebug(cfg.Debug)

			tier, err = db.ParseTier(tierFlag)
			if err != nil {
				return err
			}
			gateway = db.NewGateway(db.NewRouter(cfg))
			svc = license.NewService(gateway)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if gateway != nil {
				_ = gateway.Close()
			}
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tallysync.yaml or ./.tallysync.yaml)")
	cmd.PersistentFlags().StringVar(&tierFlag, "tier", "SILVER", "license tier (GOLD, TRIAL, SILVER)")

	cmd.AddCommand(testConnectionCmd())
	cmd.AddCommand(queryCmd())
	cmd.AddCommand(companiesCmd())
	cmd.AddCommand(ledgersCmd())
	cmd.AddCommand(syncCmd())
	cmd.AddCommand(lastSyncCmd())
	cmd.AddCommand(provisionCmd())
	cmd.AddCommand(licenseCmd())
	cmd.AddCommand(initConfigCmd())
	return cmd
}

func provisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provision <cognito-id> <username> <email>",
		Short: "Create the identity record for a newly provisioned user",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx()
			defer cancel()
			return render(gateway.EnsureUser(ctx, tier, args[0], args[1], args[2]))
		},
	}
}

func testConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Check that the backend for the selected tier is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx()
			defer cancel()
			return render(gateway.TestConnection(ctx, tier))
		},
	}
}

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql> [args...]",
		Short: "Run an ad hoc query with '?' placeholders against the tier's backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx()
			defer cancel()
			params := make([]any, 0, len(args)-1)
			for _, a := range args[1:] {
				params = append(params, a)
			}
			res := gateway.ExecuteQuery(ctx, tier, args[0], params...)
			if !res.Success {
				return fmt.Errorf("%s", res.Error)
			}
			out, _ := json.MarshalIndent(res.Rows, "", "  ")
			fmt.Printf("%s\n%d row(s)\n", out, res.RowCount)
			return nil
		},
	}
}

func companiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "companies <email>",
		Short: "List the companies a user belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx()
			defer cancel()
			refs, err := gateway.GetUserCompanies(ctx, tier, args[0])
			if err != nil {
				return err
			}
			for _, r := range refs {
				fmt.Printf("%s\t%s\n", r.CompanyID, r.CompanyName)
			}
			return nil
		},
	}
}

func ledgersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ledgers <company-id>",
		Short: "List the ledger descriptions synced for a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx()
			defer cancel()
			options, err := gateway.GetLedgerOptions(ctx, tier, args[0])
			if err != nil {
				return err
			}
			for _, o := range options {
				fmt.Println(o)
			}
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <username> <company-name> <ledgers.json>",
		Short: "Upload a ledger batch exported from the accounting system",
		Long: `Reads a JSON array of ledger records and synchronizes it into the
company's ledger set. Records already present (case-insensitive by name)
are skipped; the sync time advances even when nothing new is inserted.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			var ledgers []model.LedgerRecord
			if err := json.Unmarshal(data, &ledgers); err != nil {
				return fmt.Errorf("invalid ledger batch: %w", err)
			}
			ctx, cancel := opCtx()
			defer cancel()
			return render(gateway.UploadLedgers(ctx, tier, args[0], args[1], ledgers))
		},
	}
}

func lastSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "last-sync <email> <company-name>",
		Short: "Show when ledgers were last synced for a company",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx()
			defer cancel()
			last, err := gateway.GetLastSyncTime(ctx, tier, args[0], args[1])
			if err != nil {
				return err
			}
			if last == "" {
				fmt.Println("never synced")
				return nil
			}
			fmt.Println(last)
			return nil
		},
	}
}

func licenseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "license",
		Short: "Verify and administer machine-bound licenses",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "verify <email>",
		Short: "Verify the license binding for this machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx()
			defer cancel()
			res := svc.Verify(ctx, tier, args[0])
			fmt.Println(res.Message)
			if !res.Valid {
				os.Exit(1)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <email>",
		Short: "Provision a license record bound to this machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hwid, err := license.HardwareID()
			if err != nil {
				return err
			}
			ctx, cancel := opCtx()
			defer cancel()
			return render(svc.CreateLicenseRecord(ctx, tier, args[0], hwid))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <email>",
		Short: "Show the registered and last-detected hardware ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx()
			defer cancel()
			hwid, detected, err := svc.GetLicenseHardware(ctx, tier, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("registered: %s\ndetected:   %s\n", orNone(hwid), orNone(detected))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset <email>",
		Short: "Clear the hardware binding so another machine can register (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx()
			defer cancel()
			return render(svc.ResetHardware(ctx, tier, args[0]))
		},
	})

	return cmd
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write a starter .tallysync.yaml to the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			const path = ".tallysync.yaml"
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.WriteDefaultFile(path); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
}

func render(res db.Result) error {
	if !res.Success {
		return fmt.Errorf("%s", res.Error)
	}
	if res.Message != "" {
		fmt.Println(res.Message)
	} else {
		fmt.Println("ok")
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
