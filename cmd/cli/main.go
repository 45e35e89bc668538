package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/app"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/config"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/utilities"
)

var (
	email string

	rootCmd = &cobra.Command{
		Use:           "orangelink",
		Short:         "Maintenance commands for the OrangeLink service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables",
		RunE: withApp(func(cmd *cobra.Command, a *app.App, log *zap.SugaredLogger) error {
			if err := a.Migrate(cmd.Context()); err != nil {
				return err
			}
			log.Info("schema up to date")
			return nil
		}),
	}

	pruneCmd = &cobra.Command{
		Use:   "prune-tokens",
		Short: "Delete revoked and expired refresh tokens",
		RunE: withApp(func(cmd *cobra.Command, a *app.App, log *zap.SugaredLogger) error {
			n, err := a.Sessions.PruneTokens(cmd.Context())
			if err != nil {
				return err
			}
			log.Infow("refresh tokens pruned", "deleted", n)
			return nil
		}),
	}

	deactivateCmd = &cobra.Command{
		Use:   "deactivate-user",
		Short: "Deactivate an account and revoke its sessions",
		RunE: withApp(func(cmd *cobra.Command, a *app.App, log *zap.SugaredLogger) error {
			if err := a.Sessions.DeactivateByEmail(cmd.Context(), email); err != nil {
				return err
			}
			log.Infow("user deactivated", "email", email)
			return nil
		}),
	}

	reactivateCmd = &cobra.Command{
		Use:   "reactivate-user",
		Short: "Restore a deactivated account",
		RunE: withApp(func(cmd *cobra.Command, a *app.App, log *zap.SugaredLogger) error {
			if err := a.Users.Reactivate(cmd.Context(), email); err != nil {
				return err
			}
			log.Infow("user reactivated", "email", email)
			return nil
		}),
	}
)

// withApp opens the store and builds the services around run.
func withApp(run func(cmd *cobra.Command, a *app.App, log *zap.SugaredLogger) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		lg, err := utilities.Init(utilities.ConfigFromEnv())
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer lg.Sync()
		sugar := lg.Sugar()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer store.Close()

		a, err := app.New(cfg, store, nil, sugar)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, sugar)
	}
}

func init() {
	for _, c := range []*cobra.Command{deactivateCmd, reactivateCmd} {
		c.Flags().StringVar(&email, "email", "", "account email")
		_ = c.MarkFlagRequired("email")
	}
	rootCmd.AddCommand(migrateCmd, pruneCmd, deactivateCmd, reactivateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
