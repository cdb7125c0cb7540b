package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/spec-kit/paralympics-auth/internal/persistence"
)

func newMigrateCommand() *cobra.Command {
	var databaseURL string

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the Postgres account schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	migrateCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres URL. Defaults to POSTGRES_DSN.")

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up [steps]",
		Short: "Run schema migrations up",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, hasSteps, err := parseSteps(args)
			if err != nil {
				return err
			}
			runner, err := newRunner(databaseURL)
			if err != nil {
				return err
			}
			defer closeRunner(cmd, runner)

			if hasSteps {
				err = runner.Steps(steps)
			} else {
				err = runner.Up()
			}
			if isNoChange(err) {
				cmd.Println("No schema changes to apply.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			cmd.Println("Migrations applied.")
			return nil
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down <steps>",
		Short: "Roll back schema migrations by step count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _, err := parseSteps(args)
			if err != nil {
				return err
			}
			runner, err := newRunner(databaseURL)
			if err != nil {
				return err
			}
			defer closeRunner(cmd, runner)

			err = runner.Steps(-steps)
			if isNoChange(err) {
				cmd.Println("No schema changes to roll back.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("rollback migrations: %w", err)
			}
			cmd.Printf("Rolled back %d migration step(s).\n", steps)
			return nil
		},
	})

	return migrateCmd
}

func newRunner(databaseURL string) (*migrate.Migrate, error) {
	dsn := strings.TrimSpace(databaseURL)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	}
	if dsn == "" {
		return nil, errors.New("missing database URL: set --database-url or POSTGRES_DSN")
	}
	return persistence.NewMigrator(dsn)
}

func closeRunner(cmd *cobra.Command, runner *migrate.Migrate) {
	if err := persistence.CloseMigrator(runner); err != nil {
		cmd.PrintErrf("warning: failed to close migration runner cleanly: %v\n", err)
	}
}

func parseSteps(args []string) (int, bool, error) {
	if len(args) == 0 {
		return 0, false, nil
	}
	steps, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || steps <= 0 {
		return 0, false, fmt.Errorf("invalid migration steps %q: expected a positive integer", args[0])
	}
	return steps, true, nil
}

// isNoChange reports golang-migrate's "already at boundary" outcomes.
func isNoChange(err error) bool {
	return errors.Is(err, migrate.ErrNoChange) || errors.Is(err, os.ErrNotExist)
}
