package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/statelessauth/store/pgstore"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the principals table in PostgreSQL",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		pool, err := pgstore.Connect(ctx, pgstore.DefaultPoolConfig(cfg.Postgres.DSN))
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pgstore.New(pool).EnsureSchema(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	},
}

var dbSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the PostgreSQL schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), pgstore.Schema)
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbSchemaCmd)
	rootCmd.AddCommand(dbCmd)
}
